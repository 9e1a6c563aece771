package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	name, email, password, role string
}

// 開発用のデモデータ。admin は bootstrap_admin 側で作る。
var (
	demoUsers = []seedUser{
		{"Faculty One", "faculty@demo.com", "fac123", "faculty"},
		{"Student One", "student@demo.com", "stu123", "student"},
	}
	demoSubject = struct{ code, name string }{"AWT101", "Advanced Web Technology"}
)

// SeedDemo: dev モード専用。何度呼んでも同じ状態になる（既存行はパスワードも含め触らない）。
func SeedDemo(ctx context.Context, conn *sql.DB) error {
	hashes := make([]string, len(demoUsers))
	for i, u := range demoUsers {
		h, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash demo password: %w", err)
		}
		hashes[i] = string(h)
	}

	err := RunInTx(ctx, conn, nil, func(ctx context.Context, tx DBTX) error {
		for i, u := range demoUsers {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE user_id = user_id`, u.name, u.email, hashes[i], u.role); err != nil {
				return fmt.Errorf("seed user %s: %w", u.email, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO subjects (code, name) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE subject_id = subject_id`, demoSubject.code, demoSubject.name); err != nil {
			return fmt.Errorf("seed subject: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO enrollments (student_id, subject_id)
		SELECT u.user_id, s.subject_id FROM users u, subjects s
		WHERE u.email = ? AND u.role = 'student' AND s.code = ?
		ON DUPLICATE KEY UPDATE student_id = enrollments.student_id`, "student@demo.com", demoSubject.code); err != nil {
			return fmt.Errorf("seed enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] demo data seeded (faculty@demo.com / student@demo.com, subject %s)", demoSubject.code)
	return nil
}
