// Command sushigo is a terminal client for the game server: it lists and
// creates games and can watch one live, printing every state change pushed
// over the event stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sushigo/live/clients/gameapi"
	"github.com/sushigo/live/internal/config"
	"github.com/sushigo/live/internal/game"
	"github.com/sushigo/live/internal/reconcile"
	"github.com/sushigo/live/internal/stream"
)

func main() {
	var (
		configPath = flag.String("config", "sushigo.yaml", "path to config file")
		userName   = flag.String("login", "", "log in as this user name before anything else")
		listGames  = flag.Bool("list", false, "list games and exit")
		createWith = flag.String("create", "", "create a game against these comma-separated opponents and exit")
		watchID    = flag.String("watch", "", "watch this game id live")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	api := gameapi.NewClient(cfg.Server.BaseURL, gameapi.WithToken(cfg.Server.Token))
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *userName != "" {
		if _, err := api.Login(ctx, *userName); err != nil {
			log.Fatal().Err(err).Str("user", *userName).Msg("login failed")
		}
		log.Info().Str("user", *userName).Msg("logged in")
	}

	switch {
	case *listGames:
		runList(ctx, api)
	case *createWith != "":
		runCreate(ctx, api, strings.Split(*createWith, ","))
	case *watchID != "":
		runWatch(ctx, cfg, api, *watchID)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runList(ctx context.Context, api *gameapi.Client) {
	games, err := api.ListGames(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list games")
	}
	if len(games) == 0 {
		fmt.Println("no games")
		return
	}
	for _, g := range games {
		fmt.Printf("%s  %s\n", g.ID, strings.Join(g.Players, ", "))
	}
}

func runCreate(ctx context.Context, api *gameapi.Client, opponents []string) {
	for i := range opponents {
		opponents[i] = strings.TrimSpace(opponents[i])
	}
	id, err := api.CreateGame(ctx, opponents)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create game")
	}
	fmt.Println(id)
}

func runWatch(ctx context.Context, cfg config.Config, api *gameapi.Client, rawID string) {
	gameID, err := uuid.Parse(rawID)
	if err != nil {
		log.Fatal().Err(err).Str("game_id", rawID).Msg("invalid game id")
	}

	initial, err := api.LoadGame(ctx, gameID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load game")
	}
	if initial == nil {
		log.Fatal().Str("game_id", rawID).Msg("game does not exist")
	}

	streamClient := stream.NewClient(cfg.StreamBaseURL(),
		stream.WithBackoff(cfg.Stream.BackoffMin.Std(), cfg.Stream.BackoffMax.Std()))

	rec := reconcile.New(api, reconcile.StreamDialer{Client: streamClient},
		reconcile.WithGraceDelay(cfg.GraceDelay.Std()))

	finished := make(chan struct{})
	rec.OnChange(func(v reconcile.View) {
		printView(v)
		if v.Game.Terminal() {
			markDone(finished)
		}
	})
	rec.OnRoundOver(func(s game.RoundSummary) {
		fmt.Printf("-- round %d over --\n", s.Round)
		for player, points := range s.Points {
			fmt.Printf("   %s: %d points\n", player, points)
		}
	})
	rec.OnGameMissing(func() {
		log.Warn().Str("game_id", rawID).Msg("game disappeared")
		markDone(finished)
	})

	if err := rec.Mount(ctx, gameID, initial); err != nil {
		log.Fatal().Err(err).Msg("failed to mount game view")
	}
	defer rec.Unmount()

	printView(rec.Snapshot())

	select {
	case <-ctx.Done():
	case <-finished:
	}
}

// markDone closes ch unless it is already closed.
func markDone(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func printView(v reconcile.View) {
	fmt.Printf("round %d", v.Game.Round)
	if v.Countdown != nil {
		fmt.Printf("  countdown %ds", *v.Countdown)
	}
	fmt.Println()

	fmt.Printf("  you: %d pts, %d puddings, %d cards in hand, selected %v\n",
		v.Game.Player.NumPoints, v.Game.Player.NumPuddings,
		len(v.Game.Player.Hand), v.Game.Player.SelectedCards)

	for _, o := range v.Game.Opponents {
		ready := " "
		if o.Ready {
			ready = "✓"
		}
		fmt.Printf("  [%s] %s: %d pts, %d puddings, %d cards\n",
			ready, o.ID, o.NumPoints, o.NumPuddings, o.NumCards)
	}

	if v.Game.Winner != nil {
		fmt.Printf("winner: %s\n", *v.Game.Winner)
	}
}
