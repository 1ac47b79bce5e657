package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Bootstrap creates the system tables and seeds the first admin user.
// All DDL is idempotent; Bootstrap runs on every startup.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range splitStatements(s.Dialect.SystemTablesSQL()) {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap system tables: %w", err)
		}
	}
	if err := s.seedAdminUser(ctx); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

// splitStatements breaks a DDL script into single statements. The SQLite
// driver only executes one statement per call.
func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		stmts = append(stmts, part)
	}
	return stmts
}

func (s *Store) seedAdminUser(ctx context.Context) error {
	var count int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM _users").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	pb := s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _users (id, email, password_hash, roles) VALUES (%s, %s, %s, %s)",
		pb.Add(uuid.New().String()),
		pb.Add("admin@localhost"),
		pb.Add(string(hashBytes)),
		pb.Add(s.Dialect.ArrayParam([]string{"admin"})),
	)
	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return err
	}

	log.Println("WARNING: Default admin user created (admin@localhost / changeme), change the password immediately.")
	return nil
}
