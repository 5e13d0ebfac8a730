// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

//go:build integration

package store_test

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cairn/cairn/internal/access"
	accessstore "github.com/cairn/cairn/internal/access/store"
	"github.com/cairn/cairn/internal/catalog"
	"github.com/cairn/cairn/internal/config"
	"github.com/cairn/cairn/internal/identity"
	identitypg "github.com/cairn/cairn/internal/identity/postgres"
	"github.com/cairn/cairn/internal/store"
)

// setupPostgresPool starts a PostgreSQL container, connects a pool and
// applies all migrations.
func setupPostgresPool() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("cairn_test"),
		postgres.WithUsername("cairn"),
		postgres.WithPassword("cairn"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := store.Connect(ctx, config.DatabaseConfig{
		URL:            connStr,
		ConnectTimeout: 30 * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup, nil
}

var _ = Describe("PostgresRepositories", func() {
	var pool *pgxpool.Pool
	var cleanup func()

	BeforeEach(func() {
		var err error
		pool, cleanup, err = setupPostgresPool()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	newUser := func(ctx context.Context, name string, role identity.Role) *identity.User {
		users := identitypg.NewUserRepository(pool)
		user := &identity.User{
			ID:           ulid.Make(),
			Name:         name,
			Role:         role,
			PasswordHash: "argon2id$stub",
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		Expect(users.Create(ctx, user)).To(Succeed())
		return user
	}

	newRecord := func(ctx context.Context, owner *identity.User, title string) *catalog.Record {
		records := catalog.NewPostgresStore(pool)
		record := &catalog.Record{
			ID:        ulid.Make(),
			Title:     title,
			Abstract:  "integration fixture",
			Schema:    "dataset",
			OwnerID:   owner.ID,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		Expect(records.Create(ctx, record)).To(Succeed())
		return record
	}

	Describe("migrations", func() {
		It("seeds the reserved groups", func() {
			ctx := context.Background()
			groups := identitypg.NewGroupRepository(pool)

			everyone, err := groups.GetByName(ctx, identity.GroupEveryone)
			Expect(err).NotTo(HaveOccurred())
			Expect(everyone.Reserved).To(BeTrue())

			admins, err := groups.GetByName(ctx, identity.GroupAdministrators)
			Expect(err).NotTo(HaveOccurred())
			Expect(admins.Reserved).To(BeTrue())
		})
	})

	Describe("UserRepository", func() {
		It("round-trips a user with group memberships", func() {
			ctx := context.Background()
			users := identitypg.NewUserRepository(pool)
			groups := identitypg.NewGroupRepository(pool)

			user := newUser(ctx, "ada", identity.RoleUser)

			curators := &identity.UserGroup{
				ID:        ulid.Make(),
				Name:      "curators",
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			}
			Expect(groups.Create(ctx, curators)).To(Succeed())
			Expect(groups.AddMember(ctx, curators.ID, user.ID)).To(Succeed())

			got, err := users.GetByName(ctx, "ada")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))
			Expect(got.GroupNames()).To(ContainElement("curators"))
		})

		It("rejects duplicate names", func() {
			ctx := context.Background()
			users := identitypg.NewUserRepository(pool)

			newUser(ctx, "dup", identity.RoleUser)
			err := users.Create(ctx, &identity.User{
				ID:           ulid.Make(),
				Name:         "dup",
				Role:         identity.RoleUser,
				PasswordHash: "argon2id$stub",
				CreatedAt:    time.Now().UTC(),
				UpdatedAt:    time.Now().UTC(),
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SessionRepository", func() {
		It("stores and expires sessions", func() {
			ctx := context.Background()
			sessions := identitypg.NewSessionRepository(pool)
			user := newUser(ctx, "sess-user", identity.RoleUser)

			live := &identity.Session{
				ID:         ulid.Make(),
				UserID:     user.ID,
				TokenHash:  "live-hash",
				ExpiresAt:  time.Now().Add(time.Hour).UTC(),
				CreatedAt:  time.Now().UTC(),
				LastSeenAt: time.Now().UTC(),
			}
			Expect(sessions.Create(ctx, live)).To(Succeed())

			stale := &identity.Session{
				ID:         ulid.Make(),
				UserID:     user.ID,
				TokenHash:  "stale-hash",
				ExpiresAt:  time.Now().Add(-time.Hour).UTC(),
				CreatedAt:  time.Now().Add(-2 * time.Hour).UTC(),
				LastSeenAt: time.Now().Add(-2 * time.Hour).UTC(),
			}
			Expect(sessions.Create(ctx, stale)).To(Succeed())

			got, err := sessions.GetByTokenHash(ctx, "live-hash")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserID).To(Equal(user.ID))

			deleted, err := sessions.DeleteExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeEquivalentTo(1))
		})
	})

	Describe("RuleStore", func() {
		It("round-trips rules with IP ranges", func() {
			ctx := context.Background()
			rules := accessstore.NewRuleStore(pool, slog.Default())
			owner := newUser(ctx, "rule-owner", identity.RoleUser)
			record := newRecord(ctx, owner, "ruled record")

			rule := &access.SecurityRule{
				ID:       ulid.Make(),
				EntityID: record.ID,
				Scope:    access.GroupScope("curators"),
				CanRead:  true,
				CanWrite: true,
				IPRanges: []access.IPRange{
					{CIDR: "10.0.0.0/8", Description: "office"},
					{CIDR: "192.168.1.0/24"},
				},
			}
			Expect(rules.Create(ctx, rule)).To(Succeed())

			got, err := rules.Get(ctx, rule.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Scope.GroupName).To(Equal("curators"))
			Expect(got.IPRanges).To(HaveLen(2))
			Expect(got.IPRanges[0].CIDR).To(Equal("10.0.0.0/8"))

			byEntity, err := rules.ListByEntity(ctx, record.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byEntity).To(HaveLen(1))

			Expect(rules.Delete(ctx, rule.ID)).To(Succeed())
			_, err = rules.Get(ctx, rule.ID)
			Expect(err).To(HaveOccurred())
		})

		It("answers user and group scoped queries", func() {
			ctx := context.Background()
			rules := accessstore.NewRuleStore(pool, slog.Default())
			owner := newUser(ctx, "scope-owner", identity.RoleUser)
			record := newRecord(ctx, owner, "scoped record")

			userRule := &access.SecurityRule{
				ID:       ulid.Make(),
				EntityID: record.ID,
				Scope:    access.UserScope(owner.ID, owner.Name),
				CanRead:  true,
				CanWrite: true,
			}
			Expect(rules.Create(ctx, userRule)).To(Succeed())

			publicRule := &access.SecurityRule{
				ID:       ulid.Make(),
				EntityID: record.ID,
				Scope:    access.PublicScope(),
				CanRead:  true,
			}
			Expect(rules.Create(ctx, publicRule)).To(Succeed())

			forUser, err := rules.UserRules(ctx, owner.Name, record.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(forUser).To(HaveLen(1))
			Expect(forUser[0].CanWrite).To(BeTrue())

			// Group queries include public rules alongside group matches.
			forGroups, err := rules.GroupRules(ctx, []string{"curators"}, record.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(forGroups).To(HaveLen(1))
			Expect(forGroups[0].Scope.Kind).To(Equal(access.ScopePublic))
		})
	})

	Describe("RecordStore", func() {
		It("round-trips records", func() {
			ctx := context.Background()
			records := catalog.NewPostgresStore(pool)
			owner := newUser(ctx, "rec-owner", identity.RoleUser)
			record := newRecord(ctx, owner, "stored record")

			got, err := records.GetByID(ctx, record.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("stored record"))
			Expect(got.OwnerID).To(Equal(owner.ID))

			got.Abstract = "revised"
			Expect(records.Update(ctx, got)).To(Succeed())

			all, err := records.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).NotTo(BeEmpty())

			Expect(records.Delete(ctx, record.ID)).To(Succeed())
			_, err = records.GetByID(ctx, record.ID)
			Expect(err).To(HaveOccurred())
		})

		It("deleting a record cascades its rules", func() {
			ctx := context.Background()
			records := catalog.NewPostgresStore(pool)
			rules := accessstore.NewRuleStore(pool, slog.Default())
			owner := newUser(ctx, "cascade-owner", identity.RoleUser)
			record := newRecord(ctx, owner, "cascade record")

			rule := &access.SecurityRule{
				ID:       ulid.Make(),
				EntityID: record.ID,
				Scope:    access.PublicScope(),
				CanRead:  true,
			}
			Expect(rules.Create(ctx, rule)).To(Succeed())

			Expect(records.Delete(ctx, record.ID)).To(Succeed())

			remaining, err := rules.ListByEntity(ctx, record.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(BeEmpty())
		})
	})
})
