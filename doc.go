// Package main provides the go-ipameta CLI tool for batch processing of iOS
// application archives and OTA manifest plists.
//
// For the library API, see the subpackages:
//
//	import "github.com/aluedeke/go-ipameta/pkg/ipameta"
//	import "github.com/aluedeke/go-ipameta/pkg/plistrename"
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/aluedeke/go-ipameta@latest
package main
