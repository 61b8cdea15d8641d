// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package kernel

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config fixes the simulated hardware shape and the scheduler defaults.
type Config struct {
	PartitionSize  int `json:"partition_size"`
	PartitionCount int `json:"partition_count"`

	Tracks        int `json:"tracks"`
	Sectors       int `json:"sectors"`
	BlocksPer     int `json:"blocks_per_sector"`
	BlockDataSize int `json:"block_data_size"`

	Quantum   int    `json:"quantum"`
	Algorithm string `json:"algorithm"`

	Trace bool `json:"trace"`
}

func DefaultConfig() Config {
	return Config{
		PartitionSize:  256,
		PartitionCount: 3,
		Tracks:         4,
		Sectors:        8,
		BlocksPer:      8,
		BlockDataSize:  60,
		Quantum:        DefaultQuantum,
		Algorithm:      RoundRobin.String(),
	}
}

// LoadConfig reads a JSON config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)

	if err != nil {
		return cfg, err
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	// Operand relocation adds base/256 to the high-order byte, which is
	// only sound when partitions are page-sized and page-aligned.
	if c.PartitionSize != 256 {
		return fmt.Errorf(
			"%w: partition_size %d", ErrInvalidArgument, c.PartitionSize,
		)
	}

	if c.PartitionCount < 1 {
		return fmt.Errorf(
			"%w: partition_count %d", ErrInvalidArgument, c.PartitionCount,
		)
	}

	if c.Tracks < 2 || c.Sectors < 1 || c.BlocksPer < 1 {
		return fmt.Errorf(
			"%w: disk geometry %d/%d/%d",
			ErrInvalidArgument, c.Tracks, c.Sectors, c.BlocksPer,
		)
	}

	if c.Tracks > 10 || c.Sectors > 10 || c.BlocksPer > 10 {
		return fmt.Errorf(
			"%w: disk geometry %d/%d/%d exceeds single-digit TSB addressing",
			ErrInvalidArgument, c.Tracks, c.Sectors, c.BlocksPer,
		)
	}

	if c.BlockDataSize < 1 {
		return fmt.Errorf(
			"%w: block_data_size %d", ErrInvalidArgument, c.BlockDataSize,
		)
	}

	if c.Quantum < 1 {
		return fmt.Errorf("%w: quantum %d", ErrInvalidArgument, c.Quantum)
	}

	if _, err := ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}

	return nil
}
