package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/lychee-technology/catalogue"
	"github.com/lychee-technology/catalogue/factory"
	"go.uber.org/zap"
)

// Server serves the catalogue HTTP API.
type Server struct {
	catalogue *factory.Catalogue
	router    chi.Router
	validate  *validator.Validate
	maxUpload int64
}

// NewServer creates a new Server instance
func NewServer(c *factory.Catalogue, cfg catalogue.ServerConfig) *Server {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	maxUpload := cfg.MaxUploadMB << 20
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	s := &Server{
		catalogue: c,
		router:    chi.NewRouter(),
		validate:  validate,
		maxUpload: maxUpload,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/option-groups", s.handleCreateGroup)
		r.Delete("/option-groups/{groupID}", s.handleDeleteGroup)
		r.Get("/option-groups/{groupID}/options", s.handleListOptions)
		r.Post("/option-groups/{groupID}/options", s.handleAddOption)
		r.Patch("/options/{optionID}", s.handleRenameOption)
		r.Delete("/options/{optionID}", s.handleDeleteOption)

		r.Post("/product-types", s.handleCreateProductType)
		r.Get("/product-types/{typeID}/attributes", s.handleListAttributes)
		r.Get("/product-types/{typeID}/schema", s.handleProductTypeSchema)

		r.Post("/attributes", s.handleDefineAttribute)
		r.Get("/attributes/{attributeID}", s.handleGetAttribute)

		r.Post("/products", s.handleCreateProduct)
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Get("/", s.handleGetProduct)
			r.Delete("/", s.handleDeleteProduct)
			r.Put("/categories/{categoryID}", s.handleAddProductCategory)
			r.Get("/values", s.handleListValues)
			r.Put("/values", s.handleSaveValues)
			r.Delete("/values/{code}", s.handleDeleteValue)
			r.Put("/values/{code}/file", s.handleUploadFile)
		})

		r.Post("/categories", s.handleCreateCategory)
		r.Get("/categories/{categoryID}", s.handleGetCategory)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func main() {
	memory := flag.Bool("memory", false, "keep the catalogue in process memory instead of Postgres")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		zap.S().Warnw("failed to load .env", "error", err)
	}

	cfg, err := catalogue.LoadConfig("CATALOGUE")
	if err != nil {
		panic(err)
	}

	logger, err := factory.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := factory.NewFileStore(ctx, cfg.Storage)
	if err != nil {
		sugar.Fatalf("failed to create file store: %v", err)
	}

	var c *factory.Catalogue
	if *memory {
		sugar.Warnw("using in-memory catalogue; data is lost on exit")
		c, err = factory.NewMemoryCatalogue(cfg, files)
	} else {
		pool, perr := factory.NewPool(ctx, cfg.Database)
		if perr != nil {
			sugar.Fatalf("failed to create database pool: %v", perr)
		}
		defer pool.Close()
		c, err = factory.NewCatalogue(ctx, cfg, pool, files)
	}
	if err != nil {
		sugar.Fatalf("failed to initialize catalogue: %v", err)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewServer(c, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sugar.Infow("starting server", "port", cfg.Server.Port, "memory", *memory)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
}
