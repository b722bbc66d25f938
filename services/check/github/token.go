// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package github

import (
	"net/http"

	"github.com/awnumar/memguard"
)

// Token holds the API token in encrypted, locked memory and only
// decrypts it while a request header is being set.
//
// Thread Safety: Safe for concurrent use.
type Token struct {
	enclave *memguard.Enclave
}

// NewToken seals value. It returns ErrNoToken for an empty value.
//
// No signal handler is installed; callers own SIGINT and must call Purge
// on their way out.
func NewToken(value string) (*Token, error) {
	if value == "" {
		return nil, ErrNoToken
	}

	// NewEnclave wipes the slice it is given.
	return &Token{enclave: memguard.NewEnclave([]byte(value))}, nil
}

// authorize sets the Authorization header on h.
func (t *Token) authorize(h http.Header) error {
	buf, err := t.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()

	h.Set("Authorization", "Bearer "+buf.String())
	return nil
}

// Purge wipes all sealed tokens. Call it once on shutdown.
func Purge() {
	memguard.Purge()
}
