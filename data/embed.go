package data

import "embed"

var (
	//go:embed defaultPolicy.yaml all:common
	Policies embed.FS
)
