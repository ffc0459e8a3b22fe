package helper

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/commune-hq/commune/dao/query"
	"github.com/commune-hq/commune/internal/handler"
	"github.com/commune-hq/commune/internal/service"
	"github.com/commune-hq/commune/pkg/chat"
	"github.com/commune-hq/commune/pkg/codes"
	"github.com/commune-hq/commune/pkg/config"
	"github.com/commune-hq/commune/pkg/mailer"
)

// ConfigInitializer 封装配置初始化逻辑
type ConfigInitializer struct {
	backendConfig *config.Config
}

// NewConfigInitializer 创建新的ConfigInitializer实例
func NewConfigInitializer() *ConfigInitializer {
	return &ConfigInitializer{
		backendConfig: config.GetConfig(),
	}
}

// GetBackendConfig 获取后端配置
func (ci *ConfigInitializer) GetBackendConfig() *config.Config {
	return ci.backendConfig
}

// LoadDebugEnvironment 加载调试环境变量
func (ci *ConfigInitializer) LoadDebugEnvironment() error {
	if gin.Mode() != gin.DebugMode {
		return nil
	}

	err := godotenv.Load(".debug.env")
	if err != nil {
		return err
	}

	be := os.Getenv("COMMUNE_BE_PORT")
	if be == "" {
		panic("COMMUNE_BE_PORT is not set")
	}
	ms := os.Getenv("COMMUNE_MS_PORT")
	if ms == "" {
		panic("COMMUNE_MS_PORT is not set")
	}

	ci.backendConfig.ServerAddr = ":" + be
	ci.backendConfig.MetricsAddr = ":" + ms

	return nil
}

// InitializeRegisterConfig 初始化注册配置
func (ci *ConfigInitializer) InitializeRegisterConfig() (*handler.RegisterConfig, error) {
	db := query.GetDB()

	m := mailer.NewFromConfig()
	codeStore, err := codes.NewFromConfig()
	if err != nil {
		return nil, err
	}

	registerConfig := &handler.RegisterConfig{
		DB:     db,
		Mailer: m,
		Codes:  codeStore,
		Hub:    chat.NewHub(),

		Members:  service.NewMembershipService(db),
		Invites:  service.NewInviteService(db, m),
		Projects: service.NewProjectService(db),
		Tasks:    service.NewTaskService(db),
		Chats:    service.NewChatService(db),
		Mails:    service.NewMailService(db, m),
	}
	return registerConfig, nil
}
