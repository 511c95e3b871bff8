package main

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/attilabuti/kroute"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("kroute")
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "kroute",
		Usage: "inspect a Kademlia routing table",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if c.Bool("debug") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "id",
				Usage: "print a random node id",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "length",
						Usage: "id length in bytes",
						Value: kroute.DefaultIdLength,
					},
				},
				Action: func(c *cli.Context) error {
					id, err := kroute.RandomId(c.Int("length"))
					if err != nil {
						return err
					}

					fmt.Fprintln(out, id)
					return nil
				},
			},
			{
				Name:  "closest",
				Usage: "print the peers of a config file closest to a target id",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "path to the TOML config",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Usage:    "hex encoded target id",
						Required: true,
					},
					&cli.UintFlag{
						Name:    "count",
						Aliases: []string{"n"},
						Usage:   "number of peers to print",
						Value:   kroute.DefaultNodesPerKBucket,
					},
				},
				Action: func(c *cli.Context) error {
					return closest(c.Context, out, c.String("config"), c.String("target"), c.Uint("count"))
				},
			},
		},
	}
}

// closest loads the peers of the config into a fresh routing table and prints
// the count closest to target, one "id addr distance" line each.
func closest(ctx context.Context, out io.Writer, path string, target string, count uint) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	options, err := cfg.options()
	if err != nil {
		return err
	}

	options.Logger = &log.Logger

	// Peers listed in the config are trusted to be alive.
	options.Prober = kroute.ProberFunc(func(context.Context, netip.AddrPort) kroute.Liveness {
		return kroute.Reachable
	})

	table, err := kroute.NewRoutingTable(options, nil)
	if err != nil {
		return err
	}

	contacts, err := cfg.contacts()
	if err != nil {
		return err
	}

	for _, contact := range contacts {
		outcome, err := table.See(ctx, contact)
		if err != nil {
			return xerrors.Errorf("add peer %s: %w", contact.Id, err)
		}

		log.Debug().Str("id", contact.Id.String()).Str("outcome", outcome.String()).Msg("peer")
	}

	targetId, err := kroute.IdFromHex(target, table.GetId().BitLen()/8)
	if err != nil {
		return xerrors.Errorf("target: %w", err)
	}

	log.Info().
		Int("peers", table.Count()).
		Int("depth", table.Depth()).
		Str("local", table.GetId().String()).
		Msg("routing table loaded")

	for _, c := range table.Closest(targetId, count) {
		fmt.Fprintf(out, "%s %s %s\n", c.Id, c.AddrPort, c.Id.Xor(targetId))
	}

	return nil
}
