package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"fable/internal/ai"
	"fable/internal/config"
	"fable/internal/handler"
	authHandler "fable/internal/handler/auth"
	storyHandler "fable/internal/handler/story"
	"fable/internal/pkg/ark"
	"fable/internal/pkg/jwt"
	"fable/internal/pkg/mongodb"
	storagepkg "fable/internal/pkg/storage"
	"fable/internal/pkg/storagefactory"
	authRepo "fable/internal/repository/auth"
	storyrepo "fable/internal/repository/story"
	"fable/internal/server/middleware"
	"fable/internal/service"
	"fable/internal/store"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *store.RedisStore

	kv       *store.DualStore
	jwtUtil  *jwt.JWT
	progress *service.ProgressService
}

// New 创建服务器实例
// MongoDB 与 Redis 都是可选依赖：两者皆缺时退化为内存存储
// （仅适合开发环境），缺其一时双后端门面自动降级。
func New(cfg *config.Config) (*Server, error) {
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 初始化 MongoDB (可选，远端权威存储)
	var mongoClient *mongodb.Client
	var remote store.Store
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, continuing without it")
		} else {
			mongoClient = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

			if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure auth indexes")
			}

			mongoStore := store.NewMongoStore(mongoClient.Database())
			if err := mongoStore.EnsureIndexes(context.Background()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure store indexes")
			}
			remote = mongoStore
		}
	}

	// 初始化 Redis (可选，本地持久缓存)
	var redisStore *store.RedisStore
	var local store.Store
	if cfg.Redis.Addr != "" {
		rs, err := store.NewRedisStore(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisStore = rs
			local = rs
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	kv := store.NewDualStore(remote, local)

	srv := &Server{
		cfg:      cfg,
		engine:   engine,
		mongo:    mongoClient,
		redis:    redisStore,
		kv:       kv,
		jwtUtil:  newJWTUtil(cfg),
		progress: service.NewProgressService(),
	}

	srv.setupRoutes()

	return srv, nil
}

// newJWTUtil 构建 JWT 工具（可选认证中间件在 mongo 缺失时也需要它）
func newJWTUtil(cfg *config.Config) *jwt.JWT {
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}

	accessTokenExpiry := cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}

	return jwt.NewJWT(jwtSecret, accessTokenExpiry)
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler()
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 故事域服务装配
	repo := storyrepo.NewRepository(s.kv)
	validator := service.NewSequenceValidator(repo)
	poller := service.NewPoller(s.kv, s.cfg.Generation.PollInterval)

	// AI 客户端 (可选，缺失时生成接口返回错误)
	// 接口变量只在客户端创建成功后赋值，否则保持 nil 供服务层判空。
	var episodeGen service.EpisodeGenerator
	var preprodGen service.PreProductionGenerator
	if s.cfg.AI.APIKey != "" {
		client, err := ai.NewClient(context.Background(), &s.cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize AI client, generation endpoints degraded")
		} else {
			episodeGen = client
			preprodGen = client
			log.Info().Str("provider", s.cfg.AI.Provider).Str("model", s.cfg.AI.Model).Msg("initialized AI client")
		}
	}

	// 分镜帧渲染客户端 (可选)
	var frameClient *ark.FrameClient
	if s.cfg.AI.Provider == "ark" && s.cfg.AI.APIKey != "" {
		fc, err := ark.NewFrameClient(&ark.FrameClientConfig{
			APIKey:  s.cfg.AI.APIKey,
			BaseURL: s.cfg.AI.BaseURL,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize frame render client")
		} else {
			frameClient = fc
		}
	}

	// 对象存储 (可选，分镜帧图片)
	var fileStorage storagepkg.Storage
	if s.cfg.Storage.Type != "" {
		fs, err := storagefactory.NewStorage(&s.cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize file storage, frame uploads disabled")
		} else {
			fileStorage = fs
			log.Info().Str("type", fs.Type()).Msg("initialized file storage")
		}
	}

	storySvc := service.NewStoryService(repo)
	genSvc := service.NewGenerationService(repo, episodeGen, validator, poller, s.progress, s.cfg.Generation)
	preprodSvc := service.NewPreProductionService(repo, preprodGen, frameClient, fileStorage, poller, s.progress, s.cfg.Generation)
	arcAgg := service.NewArcAggregator(repo)
	recoveryScanner := service.NewRecoveryScanner(repo)

	storyHdl := storyHandler.NewHandler(storySvc, genSvc, preprodSvc, arcAgg, recoveryScanner)
	progressHdl := handler.NewProgressHandler(s.progress)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 认证接口（需要远端存储）
		if s.mongo != nil {
			userRepo := authRepo.NewUserRepo(s.mongo.Database())
			refreshTokenRepo := authRepo.NewRefreshTokenRepo(s.mongo.Database())

			jwtSecret := s.cfg.Auth.JWTSecret
			if jwtSecret == "" {
				jwtSecret = "default-secret-key-change-in-production"
			}
			accessTokenExpiry := s.cfg.Auth.AccessTokenExpiry
			if accessTokenExpiry == 0 {
				accessTokenExpiry = 24 * time.Hour
			}
			refreshTokenExpiry := s.cfg.Auth.RefreshTokenExpiry
			if refreshTokenExpiry == 0 {
				refreshTokenExpiry = 7 * 24 * time.Hour
			}

			authSvc := service.NewAuthService(
				userRepo,
				refreshTokenRepo,
				jwtSecret,
				accessTokenExpiry,
				refreshTokenExpiry,
			)
			authHdl := authHandler.NewHandler(authSvc)

			v1.POST("/auth/register", authHdl.Register)
			v1.POST("/auth/login", authHdl.Login)
			v1.POST("/auth/refresh", authHdl.Refresh)

			authed := v1.Group("")
			authed.Use(middleware.Auth(s.jwtUtil))
			{
				authed.POST("/auth/logout", authHdl.Logout)
				authed.GET("/auth/me", authHdl.GetMe)
			}
		} else {
			log.Warn().Msg("MongoDB not configured, auth endpoints disabled, guest mode only")
		}

		// 故事域接口：认证可选，访客走本地缓存
		stories := v1.Group("")
		stories.Use(middleware.OptionalAuth(s.jwtUtil))
		{
			stories.POST("/story-bibles", storyHdl.CreateBible)
			stories.GET("/story-bibles", storyHdl.ListBibles)
			stories.GET("/story-bibles/:id", storyHdl.GetBible)
			stories.PUT("/story-bibles/:id/title", storyHdl.UpdateBibleTitle)
			stories.DELETE("/story-bibles/:id", storyHdl.DeleteBible)

			stories.POST("/episodes/generate", storyHdl.GenerateEpisode)
			stories.GET("/episodes", storyHdl.ListEpisodes)
			stories.GET("/episodes/:number", storyHdl.GetEpisode)
			stories.PUT("/episodes/:number/scenes/:scene", storyHdl.EditScene)
			stories.POST("/episodes/:number/choice", storyHdl.SubmitChoice)

			stories.POST("/preproduction/generate", storyHdl.GeneratePreProduction)
			stories.GET("/preproduction", storyHdl.PreProductionStatus)
			stories.GET("/preproduction/episodes/:number", storyHdl.GetEpisodePreProduction)
			stories.POST("/preproduction/frames/:number/image", storyHdl.UploadFrameImage)
			stories.GET("/preproduction/frames/:number/image", storyHdl.GetFrameImage)
			stories.POST("/preproduction/frames/:number/render", storyHdl.RenderFrame)

			stories.GET("/arcs/:index/unlock", storyHdl.ArcUnlock)
			stories.GET("/recovery", storyHdl.Recovery)

			stories.GET("/progress", progressHdl.Get)
			stories.POST("/progress", progressHdl.Post)
		}
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
