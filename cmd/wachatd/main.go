package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wachat/internal/config"
	"github.com/matheus3301/wachat/internal/daemon"
	"github.com/matheus3301/wachat/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	addrFlag := flag.String("addr", "", "listen address (overrides config server.addr)")
	configFlag := flag.String("config", "", "config file (default ~/.wachat/config.toml)")
	envFlag := flag.String("env", ".env", "dotenv file loaded before reading WACHAT_* variables")
	flag.Parse()

	if err := config.LoadDotEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "error: load %s: %v\n", *envFlag, err)
		os.Exit(1)
	}

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	params := daemon.Params{SessionName: sessionName, Addr: *addrFlag}
	if *configFlag != "" {
		cfg, err := config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		params.Config = cfg
	}

	app := fx.New(
		daemon.Module(params),
	)

	app.Run()
}
