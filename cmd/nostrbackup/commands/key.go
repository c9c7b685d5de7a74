package commands

import (
	"fmt"

	"git.home.luguber.info/inful/nostrbackup/internal/keys"
)

// KeyCmd groups public key conversions.
type KeyCmd struct {
	Npub KeyNpubCmd `cmd:"" help:"Encode a hex public key as npub"`
	Hex  KeyHexCmd  `cmd:"" help:"Decode an npub to hex"`
}

// KeyNpubCmd implements 'key npub'.
type KeyNpubCmd struct {
	Pubkey string `arg:"" help:"Hex public key"`
}

func (c *KeyNpubCmd) Run(g *Global) error {
	npub, err := keys.EncodeNpub(c.Pubkey)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.out(), npub)
	return nil
}

// KeyHexCmd implements 'key hex'.
type KeyHexCmd struct {
	Npub string `arg:"" help:"npub public key"`
}

func (c *KeyHexCmd) Run(g *Global) error {
	hex, err := keys.DecodeNpub(c.Npub)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.out(), hex)
	return nil
}
