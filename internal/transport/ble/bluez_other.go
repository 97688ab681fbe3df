//go:build !linux

package ble

import "errors"

var errUnsupported = errors.New("BLE requires BlueZ on linux")

// BlueZ is unavailable on this platform; every call fails.
type BlueZ struct{}

// NewBlueZ returns a stack that reports errUnsupported.
func NewBlueZ() *BlueZ { return &BlueZ{} }

func (b *BlueZ) SetLinkHandler(func(LinkEvent)) {}

func (b *BlueZ) Enable() error { return errUnsupported }

func (b *BlueZ) Register(Service) error { return errUnsupported }

func (b *BlueZ) Advertise(string, Service) error { return errUnsupported }

func (b *BlueZ) Notify(ConnID, []byte) error { return errUnsupported }

func (b *BlueZ) Close() error { return nil }
