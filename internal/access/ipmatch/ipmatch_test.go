// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package ipmatch

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	v4 := netip.MustParseAddr("10.1.2.3")
	v4Outside := netip.MustParseAddr("192.168.1.1")
	v6 := netip.MustParseAddr("2001:db8::1")
	mapped := netip.MustParseAddr("::ffff:10.1.2.3")
	var invalid netip.Addr

	tests := []struct {
		name          string
		addr          netip.Addr
		cidrs         []string
		wantMatch     bool
		wantMalformed int
	}{
		{
			name:      "empty list always matches",
			addr:      v4,
			wantMatch: true,
		},
		{
			name:      "empty list matches even an invalid addr",
			addr:      invalid,
			wantMatch: true,
		},
		{
			name:      "inside block",
			addr:      v4,
			cidrs:     []string{"10.0.0.0/8"},
			wantMatch: true,
		},
		{
			name:      "outside block",
			addr:      v4Outside,
			cidrs:     []string{"10.0.0.0/8"},
			wantMatch: false,
		},
		{
			name:      "or across blocks",
			addr:      v4Outside,
			cidrs:     []string{"10.0.0.0/8", "192.168.0.0/16"},
			wantMatch: true,
		},
		{
			name:          "malformed entry is skipped not fatal",
			addr:          v4,
			cidrs:         []string{"bogus", "10.0.0.0/8"},
			wantMatch:     true,
			wantMalformed: 1,
		},
		{
			name:          "all malformed fails closed",
			addr:          v4,
			cidrs:         []string{"bogus", "10.0.0.0/33"},
			wantMatch:     false,
			wantMalformed: 2,
		},
		{
			name:      "family mismatch v6 addr v4 block",
			addr:      v6,
			cidrs:     []string{"10.0.0.0/8"},
			wantMatch: false,
		},
		{
			name:      "family mismatch v4 addr v6 block",
			addr:      v4,
			cidrs:     []string{"2001:db8::/32"},
			wantMatch: false,
		},
		{
			name:      "v6 inside v6 block",
			addr:      v6,
			cidrs:     []string{"2001:db8::/32"},
			wantMatch: true,
		},
		{
			name:      "mapped v4 compares as v4",
			addr:      mapped,
			cidrs:     []string{"10.0.0.0/8"},
			wantMatch: true,
		},
		{
			name:      "invalid addr with restriction fails closed",
			addr:      invalid,
			cidrs:     []string{"10.0.0.0/8"},
			wantMatch: false,
		},
		{
			name:          "invalid addr still reports malformed entries",
			addr:          invalid,
			cidrs:         []string{"bogus"},
			wantMatch:     false,
			wantMalformed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Match(tt.addr, tt.cidrs)
			assert.Equal(t, tt.wantMatch, res.Matched)
			assert.Len(t, res.Malformed, tt.wantMalformed)
		})
	}
}
