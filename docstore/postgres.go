package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/*

documentRow is the single table every collection is stored in

Collection: collection name, first half of the primary key
Id: document id, second half of the primary key
SortedAt: the document's CreatedAt, stored in created_at. The field is not
		named CreatedAt so that gorm never fills it in on its own.
Fields: every other attribute as JSONB

*/

type documentRow struct {
	Collection string         `gorm:"primaryKey;index:idx_documents_order,priority:1"`
	Id         string         `gorm:"primaryKey;index:idx_documents_order,priority:3"`
	SortedAt   time.Time      `gorm:"column:created_at;index:idx_documents_order,priority:2"`
	Fields     datatypes.JSON `gorm:"type:jsonb"`
}

func (documentRow) TableName() string {
	return "documents"
}

// PostgresStore keeps documents in Postgres through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an open connection. Call Migrate once before use on a
// fresh database.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates or updates the documents table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&documentRow{})
}

func toRow(collection string, d *Document) (*documentRow, error) {
	fields := d.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "encode document fields")
	}
	return &documentRow{
		Collection: collection,
		Id:         d.Id,
		SortedAt:   d.CreatedAt,
		Fields:     datatypes.JSON(b),
	}, nil
}

func fromRow(r *documentRow) (*Document, error) {
	fields := map[string]interface{}{}
	if len(r.Fields) > 0 {
		if err := json.Unmarshal(r.Fields, &fields); err != nil {
			return nil, errors.Wrapf(err, "decode fields of %s/%s", r.Collection, r.Id)
		}
	}
	return &Document{Id: r.Id, CreatedAt: r.SortedAt, Fields: fields}, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func applyFilters(tx *gorm.DB, filters []Filter) (*gorm.DB, error) {
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			tx = tx.Where("fields ->> ? = ?", f.Field, fmt.Sprint(f.Value))
		case OpContains:
			tx = tx.Where("fields ->> ? ILIKE ?", f.Field, "%"+escapeLike(fmt.Sprint(f.Value))+"%")
		default:
			return nil, fmt.Errorf("unsupported operator %d on field %s", f.Op, f.Field)
		}
	}
	return tx, nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	tx := s.db.WithContext(ctx).Model(&documentRow{}).Where("collection = ?", q.Collection)
	tx, err := applyFilters(tx, q.Filters)
	if err != nil {
		return nil, err
	}

	direction := "DESC"
	cmp := "<"
	if q.Ascending {
		direction = "ASC"
		cmp = ">"
	}
	if q.StartAfter != nil {
		t, id := q.StartAfter.CreatedAt, q.StartAfter.Id
		tx = tx.Where(
			fmt.Sprintf("((created_at %s ?) OR (created_at = ? AND id %s ?))", cmp, cmp),
			t, t, id)
	}
	tx = tx.Order("created_at " + direction).Order("id " + direction)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []*documentRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "query collection %s", q.Collection)
	}
	docs := make([]*Document, 0, len(rows))
	for _, r := range rows {
		d, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *PostgresStore) Count(ctx context.Context, collection string, filters ...Filter) (int64, error) {
	tx := s.db.WithContext(ctx).Model(&documentRow{}).Where("collection = ?", collection)
	tx, err := applyFilters(tx, filters)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, errors.Wrapf(err, "count collection %s", collection)
	}
	return n, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection string, id string) (*Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s/%s", collection, id)
	}
	return fromRow(&row)
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, doc *Document) (string, error) {
	row, err := toRow(collection, doc)
	if err != nil {
		return "", err
	}
	if row.Id == "" {
		row.Id = uuid.New().String()
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return "", errors.Wrapf(res.Error, "insert into %s", collection)
	}
	if res.RowsAffected == 0 {
		return "", ErrAlreadyExists
	}
	return row.Id, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection string, id string) error {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&documentRow{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete %s/%s", collection, id)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
