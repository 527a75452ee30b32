// Package match parses match server flags and runs the authoritative
// simulation loop.
package match

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/skirmish.space/internal/mapfile"
	"github.com/louisbranch/skirmish.space/internal/match"
	entrypoint "github.com/louisbranch/skirmish.space/internal/platform/cmd"
	quictransport "github.com/louisbranch/skirmish.space/internal/transport/quic"
)

// Config holds match server configuration.
type Config struct {
	Addr          string `env:"SKIRMISH_SPACE_MATCH_ADDR" envDefault:":14768"`
	Name          string `env:"SKIRMISH_SPACE_MATCH_NAME" envDefault:"skirmish"`
	MapPath       string `env:"SKIRMISH_SPACE_MATCH_MAP"`
	ScriptDir     string `env:"SKIRMISH_SPACE_MATCH_SCRIPTS" envDefault:"scripts"`
	AssetDir      string `env:"SKIRMISH_SPACE_MATCH_ASSETS" envDefault:"assets"`
	Gamemode      string `env:"SKIRMISH_SPACE_MATCH_GAMEMODE" envDefault:"deathmatch"`
	PlayerElement string `env:"SKIRMISH_SPACE_MATCH_PLAYER_ELEMENT"`
	TickRate      int    `env:"SKIRMISH_SPACE_MATCH_TICK_RATE" envDefault:"33"`
	MaxPlayers    int    `env:"SKIRMISH_SPACE_MATCH_MAX_PLAYERS" envDefault:"16"`
	ChecksumCache string `env:"SKIRMISH_SPACE_MATCH_CHECKSUM_CACHE"`
	TLSCert       string `env:"SKIRMISH_SPACE_MATCH_TLS_CERT"`
	TLSKey        string `env:"SKIRMISH_SPACE_MATCH_TLS_KEY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The UDP address the match server listens on")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "The match name")
	fs.StringVar(&cfg.MapPath, "map", cfg.MapPath, "The compiled map file to simulate")
	fs.StringVar(&cfg.ScriptDir, "scripts", cfg.ScriptDir, "The root directory of match scripts")
	fs.StringVar(&cfg.AssetDir, "assets", cfg.AssetDir, "The root directory of match assets")
	fs.StringVar(&cfg.Gamemode, "gamemode", cfg.Gamemode, "The gamemode script name")
	fs.StringVar(&cfg.PlayerElement, "player-element", cfg.PlayerElement, "The entity element spawned per player")
	fs.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "Simulation ticks per second")
	fs.IntVar(&cfg.MaxPlayers, "max-players", cfg.MaxPlayers, "The player capacity of the match")
	fs.StringVar(&cfg.ChecksumCache, "checksum-cache", cfg.ChecksumCache, "Path to the persistent checksum cache database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.MapPath == "" {
		return Config{}, fmt.Errorf("a map file is required (-map)")
	}
	if cfg.TickRate <= 0 {
		return Config{}, fmt.Errorf("tick rate must be positive, got %d", cfg.TickRate)
	}
	return cfg, nil
}

// Run hosts one match until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMatch, func(context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg Config) error {
	m, err := mapfile.LoadFromBinary(cfg.MapPath)
	if err != nil {
		return err
	}

	tickDuration := time.Second / time.Duration(cfg.TickRate)
	host, err := match.New(match.Config{
		Name:              cfg.Name,
		TickDuration:      tickDuration,
		MaxPlayers:        cfg.MaxPlayers,
		Map:               m,
		ScriptDir:         cfg.ScriptDir,
		AssetDir:          cfg.AssetDir,
		Gamemode:          cfg.Gamemode,
		PlayerElement:     cfg.PlayerElement,
		ChecksumCachePath: cfg.ChecksumCache,
		Logger:            log.Default(),
	})
	if err != nil {
		return err
	}
	defer host.Shutdown()

	tlsConfig, err := serverTLSConfig(cfg)
	if err != nil {
		return err
	}
	trans, err := quictransport.Listen(quictransport.Config{
		Addr: cfg.Addr,
		TLS:  tlsConfig,
		Log:  log.Default(),
	}, host.Callbacks())
	if err != nil {
		return err
	}
	defer trans.Close()
	host.SetTransport(trans)

	log.Printf("match %s (%s) listening on %s (map %s, gamemode %s, %d ticks/s)",
		cfg.Name, host.ID(), trans.Addr(), m.Name, cfg.Gamemode, cfg.TickRate)

	ticker := time.NewTicker(tickDuration)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			host.Update(now.Sub(last))
			last = now
		}
	}
}

func serverTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		return quictransport.FileTLSConfig(cfg.TLSCert, cfg.TLSKey)
	}
	log.Print("no TLS certificate configured, using a self-signed one")
	return quictransport.SelfSignedTLSConfig("localhost", "127.0.0.1", "::1")
}
