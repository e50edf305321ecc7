package directory

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/dirdex/internal/domain"
	domdir "github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/order"
)

const (
	profileColumns = "id, display_name, headline, bio, location, company, skills, interests, " +
		"open_to_hire, open_to_collab, hiring, created_at, updated_at"
	projectColumns = "id, owner_id, title, oneliner, description, tags, " +
		"looking_for_collab, hiring, created_at, updated_at"
)

// Repo reads and writes profiles and projects over database/sql.
type Repo struct {
	db     *sql.DB
	driver string
}

// New creates a directory repository. driver selects the placeholder style.
func New(db *sql.DB, driver string) *Repo {
	return &Repo{db: db, driver: driver}
}

func (r *Repo) q(query string) string { return rebind(r.driver, query) }

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping directory: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// ListAll returns every profile and project.
func (r *Repo) ListAll(ctx context.Context) ([]domdir.Record, error) {
	profiles, err := r.queryProfiles(ctx, "SELECT "+profileColumns+" FROM profiles ORDER BY id")
	if err != nil {
		return nil, err
	}
	projects, err := r.queryProjects(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY id")
	if err != nil {
		return nil, err
	}
	return append(profiles, projects...), nil
}

// Get returns one record or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, kind domdir.Kind, id string) (domdir.Record, error) {
	var (
		recs []domdir.Record
		err  error
	)
	switch kind {
	case domdir.KindProfile:
		recs, err = r.queryProfiles(ctx, r.q("SELECT "+profileColumns+" FROM profiles WHERE id = ?"), id)
	case domdir.KindProject:
		recs, err = r.queryProjects(ctx, r.q("SELECT "+projectColumns+" FROM projects WHERE id = ?"), id)
	default:
		return domdir.Record{}, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidRequest, kind)
	}
	if err != nil {
		return domdir.Record{}, err
	}
	if len(recs) == 0 {
		return domdir.Record{}, fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return recs[0], nil
}

// GetMany loads records by document id. Unknown or malformed ids are skipped.
func (r *Repo) GetMany(ctx context.Context, docIDs []string) (map[string]domdir.Record, error) {
	var profileIDs, projectIDs []any
	for _, docID := range docIDs {
		kind, id, err := domdir.ParseDocumentID(docID)
		if err != nil {
			continue
		}
		if kind == domdir.KindProfile {
			profileIDs = append(profileIDs, id)
		} else {
			projectIDs = append(projectIDs, id)
		}
	}

	out := make(map[string]domdir.Record, len(docIDs))
	if len(profileIDs) > 0 {
		query := r.q("SELECT " + profileColumns + " FROM profiles WHERE id IN (" + placeholders(len(profileIDs)) + ")")
		recs, err := r.queryProfiles(ctx, query, profileIDs...)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			out[rec.DocumentID()] = rec
		}
	}
	if len(projectIDs) > 0 {
		query := r.q("SELECT " + projectColumns + " FROM projects WHERE id IN (" + placeholders(len(projectIDs)) + ")")
		recs, err := r.queryProjects(ctx, query, projectIDs...)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			out[rec.DocumentID()] = rec
		}
	}
	return out, nil
}

// MatchFilters returns document ids of records satisfying every non-empty
// category of f, most recently updated first. Empty filters match nothing.
func (r *Repo) MatchFilters(
	ctx context.Context, f domdir.Filters, kinds []domdir.Kind, limit int,
) ([]string, error) {
	if f.IsEmpty() || limit <= 0 {
		return []string{}, nil
	}

	var ids []string
	for _, kind := range normalizeKinds(kinds) {
		if !f.AppliesTo(kind) {
			continue
		}
		table, where, args := filterClause(kind, f)
		query := r.q("SELECT id FROM " + table + " WHERE " + where + " ORDER BY updated_at DESC, id LIMIT ?")
		args = append(args, limit)

		kindIDs, err := r.queryIDs(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("match filters %s: %w", kind, err)
		}
		for _, id := range kindIDs {
			ids = append(ids, domdir.DocumentID(kind, id))
		}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func filterClause(kind domdir.Kind, f domdir.Filters) (table, where string, args []any) {
	var conds []string
	anyLike := func(columns []string, values []string) {
		var ors []string
		for _, v := range values {
			for _, col := range columns {
				ors = append(ors, "LOWER("+col+") LIKE ? ESCAPE '\\'")
				args = append(args, likePattern(v))
			}
		}
		if len(ors) > 0 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		}
	}
	flag := func(column string, v *bool) {
		if v != nil {
			conds = append(conds, column+" = ?")
			args = append(args, *v)
		}
	}

	if kind == domdir.KindProject {
		table = "projects"
		anyLike([]string{"tags"}, f.Skills)
		flag("looking_for_collab", f.Collab)
		flag("hiring", f.Hiring)
	} else {
		table = "profiles"
		anyLike([]string{"location"}, f.Locations)
		anyLike([]string{"skills"}, f.Skills)
		anyLike([]string{"company", "headline", "display_name"}, f.Companies)
		flag("open_to_hire", f.Hire)
		flag("open_to_collab", f.Collab)
		flag("hiring", f.Hiring)
	}
	if len(conds) == 0 {
		conds = append(conds, "1 = 1")
	}
	return table, strings.Join(conds, " AND "), args
}

// Browse lists records without a query. Name orders by display name; every
// other order lists the most recently updated first.
func (r *Repo) Browse(
	ctx context.Context, kinds []domdir.Kind, sort order.Order, offset, limit int,
) ([]domdir.Record, error) {
	if limit <= 0 {
		return []domdir.Record{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	orderBy := "updated_at DESC, id"
	if sort == order.Name {
		orderBy = "LOWER(display_name), id"
	}

	// Each kind contributes up to offset+limit rows; the merged window is cut in Go.
	window := offset + limit
	var recs []domdir.Record
	for _, kind := range normalizeKinds(kinds) {
		var (
			part []domdir.Record
			err  error
		)
		if kind == domdir.KindProfile {
			part, err = r.queryProfiles(ctx,
				r.q("SELECT "+profileColumns+" FROM profiles ORDER BY "+orderBy+" LIMIT ?"), window)
		} else {
			projectOrder := strings.ReplaceAll(orderBy, "display_name", "title")
			part, err = r.queryProjects(ctx,
				r.q("SELECT "+projectColumns+" FROM projects ORDER BY "+projectOrder+" LIMIT ?"), window)
		}
		if err != nil {
			return nil, fmt.Errorf("browse %s: %w", kind, err)
		}
		recs = append(recs, part...)
	}

	slices.SortStableFunc(recs, func(a, b domdir.Record) int {
		if sort == order.Name {
			if c := strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)); c != 0 {
				return c
			}
			return strings.Compare(a.DocumentID(), b.DocumentID())
		}
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentID(), b.DocumentID())
	})

	if offset >= len(recs) {
		return []domdir.Record{}, nil
	}
	end := min(offset+limit, len(recs))
	return recs[offset:end], nil
}

// Count returns the number of records of the given kinds.
func (r *Repo) Count(ctx context.Context, kinds []domdir.Kind) (int, error) {
	total := 0
	for _, kind := range normalizeKinds(kinds) {
		var n int
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableFor(kind)).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", kind, err)
		}
		total += n
	}
	return total, nil
}

// Upsert inserts or replaces a record.
func (r *Repo) Upsert(ctx context.Context, rec domdir.Record) error {
	var (
		query string
		args  []any
	)
	switch rec.Kind {
	case domdir.KindProfile:
		query = `INSERT INTO profiles (` + profileColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    display_name = excluded.display_name,
    headline = excluded.headline,
    bio = excluded.bio,
    location = excluded.location,
    company = excluded.company,
    skills = excluded.skills,
    interests = excluded.interests,
    open_to_hire = excluded.open_to_hire,
    open_to_collab = excluded.open_to_collab,
    hiring = excluded.hiring,
    updated_at = excluded.updated_at`
		args = []any{
			rec.ID, rec.DisplayName, rec.Headline, rec.Bio, rec.Location, rec.Company,
			encodeList(rec.Skills), encodeList(rec.Interests),
			rec.Availability.Hire, rec.Availability.Collab, rec.Availability.Hiring,
			toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
		}
	case domdir.KindProject:
		query = `INSERT INTO projects (` + projectColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    owner_id = excluded.owner_id,
    title = excluded.title,
    oneliner = excluded.oneliner,
    description = excluded.description,
    tags = excluded.tags,
    looking_for_collab = excluded.looking_for_collab,
    hiring = excluded.hiring,
    updated_at = excluded.updated_at`
		args = []any{
			rec.ID, rec.OwnerID, rec.DisplayName, rec.Headline, rec.Bio, encodeList(rec.Skills),
			rec.Availability.Collab, rec.Availability.Hiring,
			toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidRequest, rec.Kind)
	}

	if _, err := r.db.ExecContext(ctx, r.q(query), args...); err != nil {
		return fmt.Errorf("upsert %s: %w", rec.DocumentID(), err)
	}
	return nil
}

// Delete removes a record. Returns domain.ErrNotFound when nothing was deleted.
func (r *Repo) Delete(ctx context.Context, kind domdir.Kind, id string) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidRequest, kind)
	}
	res, err := r.db.ExecContext(ctx, r.q("DELETE FROM "+tableFor(kind)+" WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repo) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repo) queryProfiles(ctx context.Context, query string, args ...any) ([]domdir.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []domdir.Record
	for rows.Next() {
		var (
			rec               domdir.Record
			skills, interests string
			created, updated  int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.DisplayName, &rec.Headline, &rec.Bio, &rec.Location, &rec.Company,
			&skills, &interests,
			&rec.Availability.Hire, &rec.Availability.Collab, &rec.Availability.Hiring,
			&created, &updated,
		); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		rec.Kind = domdir.KindProfile
		rec.Skills = decodeList(skills)
		rec.Interests = decodeList(interests)
		rec.CreatedAt = fromMillis(created)
		rec.UpdatedAt = fromMillis(updated)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func (r *Repo) queryProjects(ctx context.Context, query string, args ...any) ([]domdir.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []domdir.Record
	for rows.Next() {
		var (
			rec              domdir.Record
			tags             string
			created, updated int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.OwnerID, &rec.DisplayName, &rec.Headline, &rec.Bio, &tags,
			&rec.Availability.Collab, &rec.Availability.Hiring,
			&created, &updated,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		rec.Kind = domdir.KindProject
		rec.Skills = decodeList(tags)
		rec.CreatedAt = fromMillis(created)
		rec.UpdatedAt = fromMillis(updated)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

func normalizeKinds(kinds []domdir.Kind) []domdir.Kind {
	if len(kinds) == 0 {
		return []domdir.Kind{domdir.KindProfile, domdir.KindProject}
	}
	out := make([]domdir.Kind, 0, 2)
	for _, k := range []domdir.Kind{domdir.KindProfile, domdir.KindProject} {
		if slices.Contains(kinds, k) {
			out = append(out, k)
		}
	}
	return out
}

func tableFor(kind domdir.Kind) string {
	if kind == domdir.KindProject {
		return "projects"
	}
	return "profiles"
}
