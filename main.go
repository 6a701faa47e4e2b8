// Command showdown-engine pits two greedy bots against each other on a local
// simulator, or logs one bot into a battle server. It is the reference
// wiring of the engine's pieces: connection, interpreter, dispatcher, replay
// store and listener.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"showdown-engine/battle"
	"showdown-engine/bot"
	"showdown-engine/client"
	"showdown-engine/config"
	"showdown-engine/data"
	"showdown-engine/dispatch"
	"showdown-engine/internal/log"
	"showdown-engine/replay"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config; defaults apply when empty")
	mode := flag.String("mode", "local", "local (spawn a simulator) or server (connect to a battle server)")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if cfg.LogFile != "" {
		if err := log.SetFileOutput(cfg.LogFile, slog.LevelDebug); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer log.Close()
	}

	dex, err := data.Load(cfg.DataDir)
	if err != nil {
		log.Warn("dex unavailable, scoring falls back to base assumptions", "err", err)
	}

	var store *replay.Store
	var traffic client.TrafficFunc
	if cfg.ReplayDB != "" {
		store, err = replay.Open(cfg.ReplayDB)
		if err != nil {
			log.Error("replay store unavailable", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		traffic = store.Traffic
	}

	switch *mode {
	case "server":
		err = runServer(cfg, dex, traffic)
	default:
		err = runLocal(cfg, dex, store, traffic)
	}
	if err != nil {
		log.Error("run failed", "err", err)
		os.Exit(1)
	}
}

// runLocal plays cfg.Battle.Count bot-vs-bot battles against a spawned
// simulator process, one process per battle.
func runLocal(cfg config.Config, dex *data.Dex, store *replay.Store, traffic client.TrafficFunc) error {
	if len(cfg.Simulator.Command) == 0 {
		return fmt.Errorf("no simulator command configured")
	}
	nextID := uint64(0)
	for i := 0; i < cfg.Battle.Count; i++ {
		id1, id2 := nextID+1, nextID+2
		nextID += 2
		if err := playLocalBattle(cfg, dex, store, traffic, id1, id2); err != nil {
			return fmt.Errorf("battle %d: %w", i+1, err)
		}
	}
	return nil
}

func playLocalBattle(cfg config.Config, dex *data.Dex, store *replay.Store, traffic client.TrafficFunc, id1, id2 uint64) error {
	cmd := exec.Command(cfg.Simulator.Command[0], cfg.Simulator.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start simulator: %w", err)
	}
	defer cmd.Wait()
	defer stdin.Close()

	disp := dispatch.New(cfg.Dispatch.Workers, cfg.Dispatch.MaxListeners, cfg.Dispatch.QueueCapacity)
	defer disp.Close()

	conn := client.NewDirectSimConnection(stdout, stdin, disp, traffic)
	onEnd := func(final *battle.State) {
		if store != nil {
			if err := store.FinishBattle(final.ID(), final.Outcome()); err != nil {
				log.Error("record outcome failed", "id", final.ID(), "err", err)
			}
		}
	}
	bots := []*bot.Greedy{
		{Dex: dex, Conn: conn, OnEnd: onEnd},
		{Dex: dex, Conn: conn, OnEnd: onEnd},
	}
	if err := disp.AttachMany(
		[]uint64{id1, id2},
		[]battle.Listener{bots[0], bots[1]},
	); err != nil {
		return err
	}
	if store != nil {
		if err := store.StartBattle(id1, cfg.Battle.Format); err != nil {
			return err
		}
	}

	log.Info("battle starting", "format", cfg.Battle.Format, "ids", []uint64{id1, id2})
	return conn.RunBattle(client.BattleConfig{
		Format:     cfg.Battle.Format,
		Generation: cfg.Battle.Generation,
		Players: []client.PlayerSetup{
			{Name: "Greedy 1"},
			{Name: "Greedy 2"},
		},
		BattleIDs: map[battle.PlayerID]uint64{1: id1, 2: id2},
	})
}

// runServer logs the bot into a battle server and plays whatever battles it
// gets invited to until the socket closes.
func runServer(cfg config.Config, dex *data.Dex, traffic client.TrafficFunc) error {
	if cfg.Server.Username == "" {
		return fmt.Errorf("server mode needs a username")
	}
	greedy := &bot.Greedy{Dex: dex}
	conn, err := client.DialServer(client.ServerConfig{
		URL:        cfg.Server.URL,
		Username:   cfg.Server.Username,
		Password:   cfg.Server.Password,
		Generation: cfg.Battle.Generation,
		Traffic:    traffic,
	}, greedy)
	if err != nil {
		return err
	}
	greedy.Conn = conn
	return conn.Run()
}
