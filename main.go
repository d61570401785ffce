package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"studysphere/app/http/middlewares"
	"studysphere/bootstrap"
	btsConfig "studysphere/config"
	"studysphere/pkg/app"
	"studysphere/pkg/config"
	"studysphere/pkg/logger"
	"studysphere/pkg/redis"
)

// 加载应用程序的基础配置
func init() {
	btsConfig.Initialize()
}

// App 应用程序上下文，用于优雅关闭
type App struct {
	server     *http.Server
	background *bootstrap.Background
	ipLimiter  *middlewares.IPLimiter
}

func main() {
	env := parseFlags()

	application, err := setupApplication(env)
	if err != nil {
		log.Fatalf("初始化应用程序失败: %v", err)
	}

	application.start()
}

// parseFlags 解析命令行参数
func parseFlags() string {
	var env string
	flag.StringVar(&env, "env", "", "加载 .env 文件，例如 --env=testing 将加载 .env.testing 文件")
	flag.Parse()
	return env
}

// setupApplication 初始化应用程序所需的各种组件
func setupApplication(env string) (*App, error) {
	config.InitConfig(env)
	bootstrap.SetupLogger()

	if err := bootstrap.SetupDB(); err != nil {
		return nil, err
	}

	// Redis 只承载缓存、限流和后台对账，不可用时降级运行
	if err := bootstrap.SetupRedis(); err != nil {
		logger.WarnString("Redis", "Setup", "Redis 不可用，降级运行: "+err.Error())
	}

	services, err := bootstrap.SetupPayment()
	if err != nil {
		return nil, err
	}

	background := bootstrap.SetupQueue(services)

	if app.IsProduction() || !config.GetBool("app.debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	ipLimiter := bootstrap.SetupIPLimiter()
	router := gin.New()
	bootstrap.SetupRoute(router, services, background, ipLimiter)

	return &App{
		server: &http.Server{
			Addr:              ":" + config.Get("app.port"),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		background: background,
		ipLimiter:  ipLimiter,
	}, nil
}

// start 启动服务器并处理优雅关闭
func (a *App) start() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.InfoString("Server", "Start", "服务器正在启动，监听端口 "+a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	<-quit
	logger.InfoString("Server", "Shutdown", "正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.ErrorString("Server", "Shutdown", err.Error())
	}

	// HTTP 停止接收请求后再停止后台对账
	a.background.Stop()
	a.ipLimiter.Stop()

	if redis.Manager != nil {
		for _, instance := range []redis.RedisInstance{redis.MainDB, redis.QueueDB} {
			logger.LogIf(redis.GetRedis(instance).Close())
		}
	}

	logger.InfoString("Server", "Shutdown", "服务器已成功关闭")
}
