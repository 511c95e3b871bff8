package main

import (
	"net/netip"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/attilabuti/kroute"
	"golang.org/x/xerrors"
)

// config is the TOML file read by the closest command.
//
//	local_id = "00..."
//	bucket_size = 20
//	probe_timeout = "2s"
//
//	[[peers]]
//	id = "ff..."
//	addr = "203.0.113.7:6881"
type config struct {
	LocalId      string       `toml:"local_id"`
	IdLength     int          `toml:"id_length"`
	BucketSize   int          `toml:"bucket_size"`
	ProbeTimeout duration     `toml:"probe_timeout"`
	Peers        []peerConfig `toml:"peers"`
}

type peerConfig struct {
	Id   string `toml:"id"`
	Addr string `toml:"addr"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func loadConfig(path string) (*config, error) {
	var cfg config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, xerrors.Errorf("decode config %s: %w", path, err)
	}

	if cfg.IdLength < 1 {
		cfg.IdLength = kroute.DefaultIdLength
	}

	return &cfg, nil
}

// options returns the routing table options described by the config.
func (c *config) options() (kroute.Options, error) {
	options := kroute.Options{
		IdLength:        c.IdLength,
		NodesPerKBucket: c.BucketSize,
		ProbeTimeout:    c.ProbeTimeout.Duration,
	}

	if c.LocalId != "" {
		id, err := kroute.IdFromHex(c.LocalId, c.IdLength)
		if err != nil {
			return kroute.Options{}, xerrors.Errorf("local_id: %w", err)
		}
		options.LocalNodeId = id
	}

	return options, nil
}

// contacts parses the configured peers.
func (c *config) contacts() (kroute.Contacts, error) {
	contacts := make(kroute.Contacts, 0, len(c.Peers))

	for i, p := range c.Peers {
		id, err := kroute.IdFromHex(p.Id, c.IdLength)
		if err != nil {
			return nil, xerrors.Errorf("peer %d: %w", i, err)
		}

		var addr netip.AddrPort
		if p.Addr != "" {
			addr, err = netip.ParseAddrPort(p.Addr)
			if err != nil {
				return nil, xerrors.Errorf("peer %d: %w", i, err)
			}
		}

		contacts = append(contacts, kroute.Contact{Id: id, AddrPort: addr})
	}

	return contacts, nil
}
