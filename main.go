package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dashanddots/go-server/internal/coord"
	"github.com/dashanddots/go-server/internal/game"
	"github.com/dashanddots/go-server/internal/httpserver"
	"github.com/dashanddots/go-server/internal/hub"
	"github.com/dashanddots/go-server/internal/room"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	// Room state: Redis when configured, in-process otherwise.
	var store room.Store
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		store = room.NewRedisStore(client)
		log.Info().Str("addr", addr).Msg("using redis room store")
	} else {
		store = room.NewMemoryStore()
		log.Info().Msg("using in-memory room store")
	}

	// Match archive (SQLite).
	db, err := openDB(getEnv("SQLITE_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	archive := NewMatchArchive(db)

	games := game.NewRegistry(game.NewDots())

	dispatch := httpserver.NewDispatcher()
	ws := hub.New(dispatch)
	c := coord.New(games, room.NewRooms(store), ws, coord.WithArchiver(archive))
	dispatch.Bind(c)

	srv := httpserver.New(c, ws, archive)
	port := getEnv("PORT", "8080")
	log.Info().Str("port", port).Msg("starting go-server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
