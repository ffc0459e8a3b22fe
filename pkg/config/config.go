package config

import (
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

type Config struct {
	// Port Settings
	Host        string `json:"host"`        // The domain name of the server.
	ServerAddr  string `json:"serverAddr"`  // The address the server endpoint binds to.
	MetricsAddr string `json:"metricsAddr"` // The address the metric endpoint binds to.

	Auth struct {
		AccessTokenSecret  string `json:"accessTokenSecret"`
		RefreshTokenSecret string `json:"refreshTokenSecret"`
	} `json:"auth"`

	Postgres struct {
		Host     string `json:"host"`
		Port     string `json:"port"`
		DBName   string `json:"dbname"`
		User     string `json:"user"`
		Password string `json:"password"`
		SSLMode  string `json:"sslmode"`
		TimeZone string `json:"TimeZone"`
		// Optional read replica DSNs, routed by gorm dbresolver.
		Replicas []string `json:"replicas"`
	} `json:"postgres"`

	Redis struct {
		Enable   bool   `json:"enable"`
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`

	SMTP struct {
		Enable   bool   `json:"enable"`
		Host     string `json:"host"`
		Port     int    `json:"port"`
		User     string `json:"user"`
		Password string `json:"password"`
		From     string `json:"from"`
	} `json:"smtp"`

	// Signup requires an e-mailed verification code when both SMTP and
	// Redis are enabled and this flag is set.
	Signup struct {
		RequireEmailVerification bool `json:"requireEmailVerification"`
	} `json:"signup"`

	LDAP struct {
		Enable   bool   `json:"enable"`
		Address  string `json:"address"`
		UserName string `json:"userName"`
		Password string `json:"password"`
		SearchDN string `json:"searchDN"`
	} `json:"ldap"`

	Events struct {
		Kafka struct {
			Enable  bool     `json:"enable"`
			Brokers []string `json:"brokers"`
			Topic   string   `json:"topic"`
		} `json:"kafka"`
		// Webhook URLs that receive every published event as JSON.
		Webhooks []string `json:"webhooks"`
	} `json:"events"`

	Invite struct {
		TTLHours int `json:"ttlHours"` // default 168 (7 days)
	} `json:"invite"`
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// initConfig reads the configuration file. If the environment is set to
// debug, it reads the debug-config.yaml file. Otherwise, it reads the
// config.yaml file from ConfigMap.
func initConfig() *Config {
	config := &Config{}
	var configPath string
	if IsDebugMode() {
		if os.Getenv("COMMUNE_DEBUG_CONFIG_PATH") != "" {
			configPath = os.Getenv("COMMUNE_DEBUG_CONFIG_PATH")
		} else {
			configPath = "./etc/debug-config.yaml"
		}
	} else {
		configPath = "/etc/config/config.yaml"
	}
	klog.Info("config path: ", configPath)

	err := readConfig(configPath, config)
	if err != nil {
		klog.Error("init config", err)
		panic(err)
	}
	if config.Invite.TTLHours <= 0 {
		config.Invite.TTLHours = 168
	}
	return config
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return err
	}
	return nil
}
