package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ecoxlabs/growthworker/internal/models"
)

// AccountRepository provides access to the managed-account collection. The
// engine reads whole account documents and writes back only the bounded
// field set {status, active, initial_followers, net_follow_backs}; account
// creation happens externally (the onboarding dashboard) and Store exists
// for that path and for seeding.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, name, bearer_token, target_usernames, follower_target,
	enable_follow_back_goal, initial_followers, net_follow_backs,
	active, status, claim_hour_utc, claim_minute_utc,
	follow_batch_size, follow_delay_seconds, created_at, updated_at`

// List returns every account in the store.
func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// Get returns one account by id, or nil when the account no longer exists.
func (r *AccountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Store upserts an account document, generating an id when absent.
func (r *AccountRepository) Store(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Status == "" {
		account.Status = models.StatusProcessing
	}

	query := `
		INSERT INTO accounts
		(id, name, bearer_token, target_usernames, follower_target,
		 enable_follow_back_goal, initial_followers, net_follow_backs,
		 active, status, claim_hour_utc, claim_minute_utc,
		 follow_batch_size, follow_delay_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			bearer_token = EXCLUDED.bearer_token,
			target_usernames = EXCLUDED.target_usernames,
			follower_target = EXCLUDED.follower_target,
			enable_follow_back_goal = EXCLUDED.enable_follow_back_goal,
			active = EXCLUDED.active,
			status = EXCLUDED.status,
			claim_hour_utc = EXCLUDED.claim_hour_utc,
			claim_minute_utc = EXCLUDED.claim_minute_utc,
			follow_batch_size = EXCLUDED.follow_batch_size,
			follow_delay_seconds = EXCLUDED.follow_delay_seconds,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		account.ID,
		account.Name,
		account.BearerToken,
		pq.Array(account.TargetUsernames),
		account.FollowerTarget,
		account.EnableGoal,
		account.InitialFollowers,
		account.NetFollowBacks,
		account.Active,
		string(account.Status),
		account.ClaimHourUTC,
		account.ClaimMinuteUTC,
		account.FollowBatchSize,
		account.FollowDelaySeconds,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store account %s: %w", account.Name, err)
	}
	return nil
}

// UpdateStatus writes the account's status and active flag.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status models.Status, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET status = $2, active = $3, updated_at = NOW() WHERE id = $1`,
		id, string(status), active,
	)
	if err != nil {
		return fmt.Errorf("failed to update status for account %s: %w", id, err)
	}
	return nil
}

// SetInitialFollowers persists the captured follower baseline. The baseline
// is write-once: a non-zero stored value is never overwritten, even across
// restarts, until explicitly reset to zero externally.
func (r *AccountRepository) SetInitialFollowers(ctx context.Context, id string, count int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET initial_followers = $2, updated_at = NOW()
		 WHERE id = $1 AND initial_followers = 0`,
		id, count,
	)
	if err != nil {
		return fmt.Errorf("failed to set initial followers for account %s: %w", id, err)
	}
	return nil
}

// SetNetFollowBacks persists the most recent goal-check result.
func (r *AccountRepository) SetNetFollowBacks(ctx context.Context, id string, count int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET net_follow_backs = $2, updated_at = NOW() WHERE id = $1`,
		id, count,
	)
	if err != nil {
		return fmt.Errorf("failed to set net follow-backs for account %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var targets pq.StringArray
	var status string

	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.BearerToken,
		&targets,
		&account.FollowerTarget,
		&account.EnableGoal,
		&account.InitialFollowers,
		&account.NetFollowBacks,
		&account.Active,
		&status,
		&account.ClaimHourUTC,
		&account.ClaimMinuteUTC,
		&account.FollowBatchSize,
		&account.FollowDelaySeconds,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.TargetUsernames = []string(targets)
	account.Status = models.Status(status)
	return &account, nil
}
