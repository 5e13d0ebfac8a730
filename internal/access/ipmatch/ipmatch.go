// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package ipmatch decides whether a requester address falls inside a
// security rule's CIDR restriction list.
package ipmatch

import "net/netip"

// Result reports the outcome of matching an address against a CIDR list.
type Result struct {
	Matched bool
	// Malformed holds the CIDR strings that failed to parse. Malformed
	// entries never match but do not abort evaluation of the rest.
	Malformed []string
}

// Match reports whether addr falls within at least one of the given
// CIDR blocks. An empty list means no restriction and always matches.
// A zero (invalid) addr with a non-empty list never matches: when the
// requester address is unknown, IP-restricted rules fail closed.
// An IPv4/IPv6 family mismatch between addr and a block is a non-match,
// not an error.
func Match(addr netip.Addr, cidrs []string) Result {
	if len(cidrs) == 0 {
		return Result{Matched: true}
	}

	var res Result
	if !addr.IsValid() {
		// Still surface malformed entries for the caller to warn about.
		for _, c := range cidrs {
			if _, err := netip.ParsePrefix(c); err != nil {
				res.Malformed = append(res.Malformed, c)
			}
		}
		return res
	}

	// 4-in-6 mapped addresses compare as their IPv4 form.
	addr = addr.Unmap()

	for _, c := range cidrs {
		prefix, err := netip.ParsePrefix(c)
		if err != nil {
			res.Malformed = append(res.Malformed, c)
			continue
		}
		// Contains returns false on an address-family mismatch, which is
		// exactly the non-match semantics wanted here.
		if prefix.Contains(addr) {
			res.Matched = true
		}
	}
	return res
}
