package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name domain.RoleName) (domain.Role, error) {
	var (
		role      domain.Role
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM roles WHERE name = ?`, string(name),
	).Scan(&role.ID, &role.Name, &createdAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	role.CreatedAt = fromUnix(createdAt)
	return role, nil
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at) VALUES (?, ?, ?)`,
		role.ID, string(role.Name), toUnix(role.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *rolesRepo) FindOrCreateRole(ctx context.Context, role domain.Role) (domain.Role, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		role.ID, string(role.Name), toUnix(role.CreatedAt),
	); err != nil {
		return domain.Role{}, err
	}
	return r.GetRoleByName(ctx, role.Name)
}

func (r *rolesRepo) AssignRole(ctx context.Context, userID, roleID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, role_id) DO NOTHING`,
		userID, roleID, toUnix(at),
	)
	return err
}

func (r *rolesRepo) ListRolesForUser(ctx context.Context, userID string) (domain.RoleSet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	set := domain.NewRoleSet()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		// Rows outside the closed set are ignored rather than trusted.
		if rn, err := domain.ParseRoleName(name); err == nil {
			set[rn] = struct{}{}
		}
	}
	return set, rows.Err()
}

func (r *rolesRepo) ListWithMemberCounts(ctx context.Context) ([]domain.RoleMembership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.created_at, COUNT(ur.user_id)
		FROM roles r
		LEFT JOIN user_roles ur ON ur.role_id = r.id
		GROUP BY r.id, r.name, r.created_at
		ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.RoleMembership
	for rows.Next() {
		var (
			m         domain.RoleMembership
			createdAt int64
		)
		if err := rows.Scan(&m.Role.ID, &m.Role.Name, &createdAt, &m.Members); err != nil {
			return nil, err
		}
		m.Role.CreatedAt = fromUnix(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
