package router

import (
	"database/sql"
	"net/http"

	mem "github.com/arakviel/petcare/internal/adapters/storage/memory"
	pg "github.com/arakviel/petcare/internal/adapters/storage/postgres"
	"github.com/arakviel/petcare/internal/domain/animals"
	"github.com/arakviel/petcare/internal/domain/breeds"
	"github.com/arakviel/petcare/internal/middleware"
	"github.com/arakviel/petcare/internal/platform/logger"
	"github.com/arakviel/petcare/internal/ports/auth"
	"github.com/arakviel/petcare/internal/ports/locking"
	"github.com/arakviel/petcare/internal/ports/storage"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Logger  logger.Logger         // nil = Nop
	Storage storage.ObjectStorage // nil = sin uploads
	Locker  locking.Locker        // nil = sin lock distribuido
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AuthContext(opts.AuthVerifier, log))
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Recover(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var (
		animalRepo animals.Repository
		breedRepo  breeds.Repository
	)
	if opts.DB != nil {
		animalRepo = pg.NewAnimalsRepo(opts.DB)
		breedRepo = pg.NewBreedsRepo(opts.DB)
	} else {
		animalRepo = mem.NewAnimalRepo()
		breedRepo = mem.NewBreedRepo()
	}

	// Services por módulo
	breedsSvc := breeds.NewService(breedRepo)

	animalOpts := []animals.Option{
		animals.WithLogger(log.With(map[string]any{"module": "animals"})),
		animals.WithEvents(animals.NewLogEventSink(log.With(map[string]any{"module": "events"}))),
	}
	if opts.Storage != nil {
		animalOpts = append(animalOpts, animals.WithStorage(opts.Storage))
	}
	if opts.Locker != nil {
		animalOpts = append(animalOpts, animals.WithLocker(opts.Locker))
	}
	animalsSvc := animals.NewService(animalRepo, breedsSvc, animalOpts...)

	// Rutas por módulo
	breeds.RegisterRoutes(r, breedsSvc)
	animals.RegisterRoutes(r, animalsSvc)

	return r
}
