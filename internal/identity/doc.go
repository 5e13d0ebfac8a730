// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package identity defines the identity model for Cairn: users, user
// groups, roles, and web sessions. Authentication providers (LDAP,
// OAuth2, header-based) establish *who* a requester is; this package
// owns the resulting identity data that the access engine consumes.
package identity
