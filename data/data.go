// Package data loads dex JSON files: species with their types and moves
// with their type and base power. The bundled bot uses it to score moves;
// the engine itself never needs it.
package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"showdown-engine/battle"
	"showdown-engine/protocol"
)

// Pokemon is one dex species entry.
type Pokemon struct {
	Name  string
	Types []battle.Type
}

// Move is one dex move entry.
type Move struct {
	Name  string
	Type  battle.Type
	Power int
}

// Dex is an in-memory species and move index keyed by normalized id.
type Dex struct {
	pokemon map[string]Pokemon
	moves   map[string]Move
}

type rawPokemon struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

type rawMove struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Power int    `json:"basePower"`
}

// Load reads pokedex.json and moves.json from dir.
func Load(dir string) (*Dex, error) {
	d := &Dex{
		pokemon: make(map[string]Pokemon),
		moves:   make(map[string]Move),
	}
	if err := d.loadPokedex(filepath.Join(dir, "pokedex.json")); err != nil {
		return nil, err
	}
	if err := d.loadMoves(filepath.Join(dir, "moves.json")); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dex) loadPokedex(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open pokedex: %w", err)
	}
	defer file.Close()
	var raw map[string]rawPokemon
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("parse pokedex: %w", err)
	}
	for _, p := range raw {
		entry := Pokemon{Name: p.Name}
		for _, name := range p.Types {
			t, err := battle.TypeByName(name)
			if err != nil {
				return fmt.Errorf("pokedex entry %s: %w", p.Name, err)
			}
			entry.Types = append(entry.Types, t)
		}
		d.pokemon[protocol.ToID(p.Name)] = entry
	}
	return nil
}

func (d *Dex) loadMoves(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open moves: %w", err)
	}
	defer file.Close()
	var raw map[string]rawMove
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("parse moves: %w", err)
	}
	for id, m := range raw {
		t, err := battle.TypeByName(m.Type)
		if err != nil {
			return fmt.Errorf("move entry %s: %w", id, err)
		}
		d.moves[protocol.ToID(id)] = Move{Name: m.Name, Type: t, Power: m.Power}
	}
	return nil
}

// Pokemon looks a species up by name or id.
func (d *Dex) Pokemon(name string) (Pokemon, bool) {
	p, ok := d.pokemon[protocol.ToID(name)]
	return p, ok
}

// Move looks a move up by name or id.
func (d *Dex) Move(name string) (Move, bool) {
	m, ok := d.moves[protocol.ToID(name)]
	return m, ok
}
