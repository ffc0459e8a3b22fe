package main

import (
	"time"

	"k8s.io/klog/v2"

	"github.com/commune-hq/commune/cmd/commune/helper"
	"github.com/commune-hq/commune/dao"
	"github.com/commune-hq/commune/dao/query"
)

// @title Commune API
// @version 0.1.0
// @description This is the API server for Commune, a community collaboration platform with role-based memberships.
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description 访问 /login 并获取 TOKEN 后，填入 'Bearer ${TOKEN}' 以访问受保护的接口
func main() {
	// set global timezone
	time.Local = time.UTC

	// load backend config from file
	configInit := helper.NewConfigInitializer()
	if err := configInit.LoadDebugEnvironment(); err != nil {
		klog.Info("no debug env loaded: ", err)
	}
	backendConfig := configInit.GetBackendConfig()

	// run database migrations before anything touches the schema
	if err := dao.Migrate(query.GetDB()); err != nil {
		klog.Fatal("migrate: ", err)
	}

	registerConfig, err := configInit.InitializeRegisterConfig()
	if err != nil {
		klog.Fatal("init register config: ", err)
	}

	runner := helper.NewServerRunner(backendConfig)

	cronMgr, err := runner.StartBackgroundJobs(registerConfig)
	if err != nil {
		klog.Fatal("start background jobs: ", err)
	}
	defer cronMgr.Stop()

	runner.StartServer(registerConfig)
}
