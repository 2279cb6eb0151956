//go:build !cgo

package main

const treeSitterEnabled = false
