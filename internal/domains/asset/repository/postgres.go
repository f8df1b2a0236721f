package repository

import (
	"asset-library-backend/internal/domains/asset/model"
	"asset-library-backend/pkg/database"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const assetColumns = `
	a.id, a.name, a.structure_version, a.has_texture, a.thumbnail_key,
	a.checked_out_by, a.checked_out_at,
	COALESCE((
		SELECT array_agg(k.keyword ORDER BY k.keyword)
		FROM asset_keywords ak JOIN keywords k ON k.id = ak.keyword_id
		WHERE ak.asset_id = a.id
	), '{}') AS keywords`

const commitColumns = `
	c.id, c.seq, c.asset_id, c.author, c.version, c.note, c.committed_at,
	au.first_name, au.last_name, au.email,
	a.name,
	EXISTS (
		SELECT 1 FROM asset_versions v
		WHERE v.commit_id = c.id AND v.variant_label IS NOT NULL
	) AS has_materials`

// querier is the part of pgxpool.Pool and pgx.Tx the scanners need
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// postgresStore implements Store on PostgreSQL
type postgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*postgresStore)(nil)

// NewPostgresStore creates a Store backed by the given pool
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *postgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&postgresTx{tx: tx})
	})
}

func scanAsset(row pgx.Row) (*model.Asset, error) {
	var a model.Asset
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.StructureVersion,
		&a.HasTexture,
		&a.ThumbnailKey,
		&a.CheckedOutBy,
		&a.CheckedOutAt,
		&a.Keywords,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func getAssetByName(ctx context.Context, q querier, name string, forUpdate bool) (*model.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets a WHERE a.name = $1`
	if forUpdate {
		// keywords are not needed by writers
		query = `
			SELECT a.id, a.name, a.structure_version, a.has_texture, a.thumbnail_key,
				a.checked_out_by, a.checked_out_at, '{}'::text[]
			FROM assets a WHERE a.name = $1
			FOR UPDATE`
	}

	a, err := scanAsset(q.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewAssetNotFound(name)
		}
		return nil, fmt.Errorf("failed to get asset %q: %w", name, err)
	}
	return a, nil
}

func (s *postgresStore) GetAssetByName(ctx context.Context, name string) (*model.Asset, error) {
	return getAssetByName(ctx, s.pool, name, false)
}

func (s *postgresStore) GetAuthor(ctx context.Context, pennKey string) (*model.Author, error) {
	query := `SELECT pennkey, first_name, last_name, email FROM authors WHERE pennkey = $1`

	var a model.Author
	err := s.pool.QueryRow(ctx, query, pennKey).Scan(&a.PennKey, &a.FirstName, &a.LastName, &a.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewAuthorNotFound(pennKey)
		}
		return nil, fmt.Errorf("failed to get author: %w", err)
	}
	return &a, nil
}

func (s *postgresStore) ListAuthors(ctx context.Context) ([]model.Author, error) {
	query := `
		SELECT pennkey, first_name, last_name, email
		FROM authors
		ORDER BY first_name, last_name, pennkey
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	defer rows.Close()

	authors := make([]model.Author, 0)
	for rows.Next() {
		var a model.Author
		if err := rows.Scan(&a.PennKey, &a.FirstName, &a.LastName, &a.Email); err != nil {
			return nil, fmt.Errorf("failed to scan author row: %w", err)
		}
		authors = append(authors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating author rows: %w", err)
	}
	return authors, nil
}

// catalogQuery selects one catalog row per asset. Callers append the
// WHERE and ORDER BY clauses.
const catalogQuery = `
	SELECT ` + assetColumns + `,
		f.id, f.seq, f.author, f.version, f.note, f.committed_at,
		fa.first_name, fa.last_name, fa.email,
		l.id, l.seq, l.author, l.version, l.note, l.committed_at,
		la.first_name, la.last_name, la.email,
		EXISTS (
			SELECT 1 FROM asset_versions v
			WHERE v.commit_id = l.id AND v.variant_label IS NOT NULL
		) AS has_materials
	FROM assets a
	LEFT JOIN LATERAL (
		SELECT * FROM commits c WHERE c.asset_id = a.id
		ORDER BY c.committed_at ASC, c.seq ASC LIMIT 1
	) f ON TRUE
	LEFT JOIN authors fa ON fa.pennkey = f.author
	LEFT JOIN LATERAL (
		SELECT * FROM commits c WHERE c.asset_id = a.id
		ORDER BY c.committed_at DESC, c.seq DESC LIMIT 1
	) l ON TRUE
	LEFT JOIN authors la ON la.pennkey = l.author`

// ListCatalog is one statement, so it reads one snapshot.
func (s *postgresStore) ListCatalog(ctx context.Context) ([]model.CatalogRow, error) {
	rows, err := s.pool.Query(ctx, catalogQuery+` ORDER BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	catalog := make([]model.CatalogRow, 0)
	for rows.Next() {
		row, err := scanCatalogRow(rows)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rows: %w", err)
	}
	return catalog, nil
}

func (s *postgresStore) GetCatalogRow(ctx context.Context, name string) (*model.CatalogRow, error) {
	row, err := scanCatalogRow(s.pool.QueryRow(ctx, catalogQuery+` WHERE a.name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewAssetNotFound(name)
	}
	return row, err
}

func scanCatalogRow(r pgx.Row) (*model.CatalogRow, error) {
	var (
		row           model.CatalogRow
		first, latest nullableCommit
	)
	err := r.Scan(
		&row.Asset.ID,
		&row.Asset.Name,
		&row.Asset.StructureVersion,
		&row.Asset.HasTexture,
		&row.Asset.ThumbnailKey,
		&row.Asset.CheckedOutBy,
		&row.Asset.CheckedOutAt,
		&row.Asset.Keywords,
		&first.id, &first.seq, &first.author, &first.version, &first.note, &first.at,
		&first.firstName, &first.lastName, &first.email,
		&latest.id, &latest.seq, &latest.author, &latest.version, &latest.note, &latest.at,
		&latest.firstName, &latest.lastName, &latest.email,
		&row.HasMaterials,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog row: %w", err)
	}

	row.First = first.record(row.Asset, false)
	row.Latest = latest.record(row.Asset, row.HasMaterials)
	return &row, nil
}

// nullableCommit receives the LEFT JOIN side of a catalog row
type nullableCommit struct {
	id        *uuid.UUID
	seq       *int64
	author    *string
	version   *string
	note      *string
	at        *time.Time
	firstName *string
	lastName  *string
	email     *string
}

func (n nullableCommit) record(asset model.Asset, hasMaterials bool) *model.CommitRecord {
	if n.id == nil {
		return nil
	}
	return &model.CommitRecord{
		Commit: model.Commit{
			ID:            *n.id,
			Seq:           deref(n.seq),
			AssetID:       asset.ID,
			AuthorPennKey: deref(n.author),
			Version:       deref(n.version),
			Note:          deref(n.note),
			Timestamp:     deref(n.at),
		},
		Author: model.Author{
			PennKey:   deref(n.author),
			FirstName: deref(n.firstName),
			LastName:  deref(n.lastName),
			Email:     deref(n.email),
		},
		AssetName:    asset.Name,
		HasMaterials: hasMaterials,
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func scanCommitRecord(row pgx.Row) (*model.CommitRecord, error) {
	var rec model.CommitRecord
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&rec.AssetID,
		&rec.AuthorPennKey,
		&rec.Version,
		&rec.Note,
		&rec.Timestamp,
		&rec.Author.FirstName,
		&rec.Author.LastName,
		&rec.Author.Email,
		&rec.AssetName,
		&rec.HasMaterials,
	)
	if err != nil {
		return nil, err
	}
	rec.Author.PennKey = rec.AuthorPennKey
	return &rec, nil
}

func (s *postgresStore) ListCommits(ctx context.Context, filter CommitFilter) ([]model.CommitRecord, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.AssetID != nil {
		args = append(args, *filter.AssetID)
		conditions = append(conditions, fmt.Sprintf("c.asset_id = $%d", len(args)))
	}
	if filter.Author != "" {
		args = append(args, filter.Author)
		conditions = append(conditions, fmt.Sprintf("c.author = $%d", len(args)))
	}

	query := `SELECT ` + commitColumns + `
		FROM commits c
		JOIN authors au ON au.pennkey = c.author
		JOIN assets a ON a.id = c.asset_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.committed_at DESC, c.seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	defer rows.Close()

	commits := make([]model.CommitRecord, 0)
	for rows.Next() {
		rec, err := scanCommitRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit row: %w", err)
		}
		commits = append(commits, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commit rows: %w", err)
	}
	return commits, nil
}

// commitDetail is a commit read together with its versions
type commitDetail struct {
	record   *model.CommitRecord
	versions []model.AssetVersion
}

func (s *postgresStore) GetCommit(ctx context.Context, id uuid.UUID) (*model.CommitRecord, []model.AssetVersion, error) {
	detail, err := database.WithReadOnlyResult(ctx, s.pool, func(tx pgx.Tx) (commitDetail, error) {
		query := `SELECT ` + commitColumns + `
			FROM commits c
			JOIN authors au ON au.pennkey = c.author
			JOIN assets a ON a.id = c.asset_id
			WHERE c.id = $1`

		rec, err := scanCommitRecord(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return commitDetail{}, model.NewCommitNotFound(id.String())
			}
			return commitDetail{}, fmt.Errorf("failed to get commit: %w", err)
		}

		versions, err := listVersions(ctx, tx, "commit_id", id)
		if err != nil {
			return commitDetail{}, err
		}
		return commitDetail{record: rec, versions: versions}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return detail.record, detail.versions, nil
}

func (s *postgresStore) ListVersions(ctx context.Context, assetID uuid.UUID) ([]model.AssetVersion, error) {
	return listVersions(ctx, s.pool, "asset_id", assetID)
}

func listVersions(ctx context.Context, q querier, column string, id uuid.UUID) ([]model.AssetVersion, error) {
	query := `
		SELECT id, seq, asset_id, commit_id, variant_label, filepath, store_version_id, version
		FROM asset_versions
		WHERE ` + column + ` = $1
		ORDER BY seq
	`
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset versions: %w", err)
	}
	defer rows.Close()

	versions := make([]model.AssetVersion, 0)
	for rows.Next() {
		var v model.AssetVersion
		err := rows.Scan(
			&v.ID,
			&v.Seq,
			&v.AssetID,
			&v.CommitID,
			&v.VariantLabel,
			&v.Filepath,
			&v.StoreVersionID,
			&v.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset version row: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset version rows: %w", err)
	}
	return versions, nil
}

// Checkout is a single compare-and-set statement
func (s *postgresStore) Checkout(ctx context.Context, assetID uuid.UUID, pennKey string, at time.Time) (bool, error) {
	query := `
		UPDATE assets
		SET checked_out_by = $2, checked_out_at = $3
		WHERE id = $1 AND checked_out_by IS NULL
	`
	tag, err := s.pool.Exec(ctx, query, assetID, pennKey, at)
	if err != nil {
		return false, fmt.Errorf("failed to check out asset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *postgresStore) Checkin(ctx context.Context, assetID uuid.UUID, pennKey string, force bool) (bool, error) {
	query := `
		UPDATE assets
		SET checked_out_by = NULL, checked_out_at = NULL
		WHERE id = $1
		  AND checked_out_by IS NOT NULL
		  AND ($3 OR checked_out_by = $2)
	`
	tag, err := s.pool.Exec(ctx, query, assetID, pennKey, force)
	if err != nil {
		return false, fmt.Errorf("failed to check in asset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ========================================
// TRANSACTION
// ========================================

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) InsertAsset(ctx context.Context, asset *model.Asset) error {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	query := `
		INSERT INTO assets (id, name, structure_version, has_texture, thumbnail_key)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := t.tx.Exec(ctx, query,
		asset.ID, asset.Name, asset.StructureVersion, asset.HasTexture, asset.ThumbnailKey,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "assets_name_key") {
			return model.NewAssetAlreadyExists(asset.Name)
		}
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

func (t *postgresTx) LockAssetByName(ctx context.Context, name string) (*model.Asset, error) {
	return getAssetByName(ctx, t.tx, name, true)
}

func (t *postgresTx) ResolveAuthor(ctx context.Context, pennKey string) (*model.Author, error) {
	key := strings.TrimSpace(pennKey)
	if key == "" {
		return nil, model.NewValidationMessage("pennkey is required")
	}

	if _, err := t.tx.Exec(ctx,
		`INSERT INTO authors (pennkey) VALUES ($1) ON CONFLICT (pennkey) DO NOTHING`, key,
	); err != nil {
		return nil, fmt.Errorf("failed to resolve author: %w", err)
	}

	var a model.Author
	err := t.tx.QueryRow(ctx,
		`SELECT pennkey, first_name, last_name, email FROM authors WHERE pennkey = $1`, key,
	).Scan(&a.PennKey, &a.FirstName, &a.LastName, &a.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to read author: %w", err)
	}
	return &a, nil
}

func (t *postgresTx) ResolveKeyword(ctx context.Context, raw string) (*model.Keyword, error) {
	kw, err := model.NormalizeKeyword(raw)
	if err != nil {
		return nil, err
	}

	// DO NOTHING leaves an existing row unlocked
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO keywords (keyword) VALUES ($1) ON CONFLICT (keyword) DO NOTHING`, kw,
	); err != nil {
		return nil, fmt.Errorf("failed to resolve keyword: %w", err)
	}

	var k model.Keyword
	err = t.tx.QueryRow(ctx,
		`SELECT id, keyword FROM keywords WHERE keyword = $1`, kw,
	).Scan(&k.ID, &k.Keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword: %w", err)
	}
	return &k, nil
}

func (t *postgresTx) LinkKeyword(ctx context.Context, assetID uuid.UUID, keywordID int64) error {
	query := `
		INSERT INTO asset_keywords (asset_id, keyword_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := t.tx.Exec(ctx, query, assetID, keywordID); err != nil {
		return fmt.Errorf("failed to link keyword: %w", err)
	}
	return nil
}

func (t *postgresTx) AppendCommit(ctx context.Context, commit *model.Commit) error {
	if commit.ID == uuid.Nil {
		commit.ID = uuid.New()
	}
	query := `
		INSERT INTO commits (id, asset_id, author, version, note, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`
	err := t.tx.QueryRow(ctx, query,
		commit.ID, commit.AssetID, commit.AuthorPennKey, commit.Version, commit.Note, commit.Timestamp,
	).Scan(&commit.Seq)
	if err != nil {
		return fmt.Errorf("failed to append commit: %w", err)
	}
	return nil
}

func (t *postgresTx) RecordVersion(ctx context.Context, version *model.AssetVersion) error {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	query := `
		INSERT INTO asset_versions (id, asset_id, commit_id, variant_label, filepath, store_version_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`
	err := t.tx.QueryRow(ctx, query,
		version.ID,
		version.AssetID,
		version.CommitID,
		version.VariantLabel,
		version.Filepath,
		version.StoreVersionID,
		version.Version,
	).Scan(&version.Seq)
	if err != nil {
		return fmt.Errorf("failed to record asset version: %w", err)
	}
	return nil
}

func (t *postgresTx) LatestCommit(ctx context.Context, assetID uuid.UUID) (*model.Commit, error) {
	query := `
		SELECT id, seq, asset_id, author, version, note, committed_at
		FROM commits
		WHERE asset_id = $1
		ORDER BY committed_at DESC, seq DESC
		LIMIT 1
	`
	var c model.Commit
	err := t.tx.QueryRow(ctx, query, assetID).Scan(
		&c.ID, &c.Seq, &c.AssetID, &c.AuthorPennKey, &c.Version, &c.Note, &c.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest commit: %w", err)
	}
	return &c, nil
}
