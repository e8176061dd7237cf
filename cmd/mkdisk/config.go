package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/hazyhaar/heavenos/storage"
)

// layoutDescriptor is the host-side disk-layout YAML this tool reads,
// mirroring the way dswarbrick-smart/drivedb.go unmarshals its on-disk
// drive database with the same library rather than hand-rolling a parser.
type layoutDescriptor struct {
	TotalBlocks   uint64   `yaml:"total_blocks"`
	BlockSize     uint32   `yaml:"block_size"`
	ImagePath     string   `yaml:"image_path"`
	ReservedFiles []string `yaml:"reserved_files"`
}

func loadDescriptor(path string) (*layoutDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mkdisk: reading descriptor: %w", err)
	}
	var d layoutDescriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("mkdisk: parsing descriptor: %w", err)
	}
	if d.BlockSize == 0 {
		d.BlockSize = storage.BlockSize
	}
	if d.BlockSize != storage.BlockSize {
		return nil, fmt.Errorf("mkdisk: block_size %d does not match the kernel's fixed block size %d", d.BlockSize, storage.BlockSize)
	}
	if d.TotalBlocks == 0 {
		return nil, fmt.Errorf("mkdisk: total_blocks must be nonzero")
	}
	if d.ImagePath == "" {
		return nil, fmt.Errorf("mkdisk: image_path must be set")
	}
	return &d, nil
}
