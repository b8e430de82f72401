package docstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConnectTimeout = 15 * time.Second

type mongoDocument struct {
	Id        string    `bson:"_id"`
	CreatedAt time.Time `bson:"createdAt"`
	Fields    bson.M    `bson:"fields"`
}

// MongoStore maps each collection onto a MongoDB collection of the same name.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri and pings the server before returning.
func NewMongoStore(ctx context.Context, uri string, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "ping mongo")
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// EnsureIndexes creates the ordering index on each collection.
func (s *MongoStore) EnsureIndexes(ctx context.Context, collections ...string) error {
	for _, c := range collections {
		_, err := s.db.Collection(c).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
		})
		if err != nil {
			return errors.Wrapf(err, "create index on %s", c)
		}
	}
	return nil
}

func mongoFilter(filters []Filter) (bson.D, error) {
	f := bson.D{}
	for _, flt := range filters {
		key := "fields." + flt.Field
		switch flt.Op {
		case OpEq:
			f = append(f, bson.E{Key: key, Value: flt.Value})
		case OpContains:
			f = append(f, bson.E{Key: key, Value: primitive.Regex{
				Pattern: regexp.QuoteMeta(fmt.Sprint(flt.Value)),
				Options: "i",
			}})
		default:
			return nil, fmt.Errorf("unsupported operator %d on field %s", flt.Op, flt.Field)
		}
	}
	return f, nil
}

func (d *mongoDocument) toDocument() *Document {
	fields := map[string]interface{}{}
	for k, v := range d.Fields {
		fields[k] = v
	}
	return &Document{Id: d.Id, CreatedAt: d.CreatedAt, Fields: fields}
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	filter, err := mongoFilter(q.Filters)
	if err != nil {
		return nil, err
	}

	order := -1
	cmp := "$lt"
	if q.Ascending {
		order = 1
		cmp = "$gt"
	}
	if q.StartAfter != nil {
		t, id := q.StartAfter.CreatedAt, q.StartAfter.Id
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.M{"createdAt": bson.M{cmp: t}},
			bson.M{"createdAt": t, "_id": bson.M{cmp: id}},
		}})
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: order}, {Key: "_id", Value: order}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(q.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "query collection %s", q.Collection)
	}
	defer cursor.Close(ctx)

	var raw []mongoDocument
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, errors.Wrapf(err, "decode collection %s", q.Collection)
	}
	docs := make([]*Document, 0, len(raw))
	for i := range raw {
		docs = append(docs, raw[i].toDocument())
	}
	return docs, nil
}

func (s *MongoStore) Count(ctx context.Context, collection string, filters ...Filter) (int64, error) {
	filter, err := mongoFilter(filters)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Wrapf(err, "count collection %s", collection)
	}
	return n, nil
}

func (s *MongoStore) Get(ctx context.Context, collection string, id string) (*Document, error) {
	var raw mongoDocument
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s/%s", collection, id)
	}
	return raw.toDocument(), nil
}

func (s *MongoStore) Insert(ctx context.Context, collection string, doc *Document) (string, error) {
	raw := mongoDocument{Id: doc.Id, CreatedAt: doc.CreatedAt, Fields: bson.M{}}
	if raw.Id == "" {
		raw.Id = uuid.New().String()
	}
	for k, v := range doc.Fields {
		raw.Fields[k] = v
	}
	_, err := s.db.Collection(collection).InsertOne(ctx, raw)
	if mongo.IsDuplicateKeyError(err) {
		return "", ErrAlreadyExists
	}
	if err != nil {
		return "", errors.Wrapf(err, "insert into %s", collection)
	}
	return raw.Id, nil
}

func (s *MongoStore) Delete(ctx context.Context, collection string, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "delete %s/%s", collection, id)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
