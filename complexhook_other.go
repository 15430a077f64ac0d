//go:build !amd64

// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

func (r *Registry) install(h *Hook) error {
	return ErrUnsupported
}

func (r *Registry) uninstall(h *Hook) error {
	return ErrUnsupported
}
