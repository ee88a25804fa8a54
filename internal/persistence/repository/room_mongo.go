package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type roomRepository struct {
	db *mongo.Database
}

func NewRoomRepository(db *mongo.Database) domain.RoomRepository {
	return &roomRepository{
		db: db,
	}
}

func (r *roomRepository) collection() *mongo.Collection {
	return r.db.Collection(db.RoomsCollection)
}

func (r *roomRepository) Insert(ctx context.Context, room *domain.Room) error {
	_, err := r.collection().InsertOne(ctx, room)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateID
		}
		return storageErr("insert room", err)
	}

	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, storageErr("get room", err)
	}

	return &room, nil
}

func (r *roomRepository) GetByConnectionID(ctx context.Context, connID string) (*domain.Room, error) {
	filter := bson.M{"participants.connection_id": connID}

	var room domain.Room
	err := r.collection().FindOne(ctx, filter).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, storageErr("get room by connection", err)
	}

	return &room, nil
}

// Save is a conditional replace keyed on the version the caller read.
// A concurrent writer bumps the version first and this write matches
// nothing, which surfaces as ErrVersionConflict for the caller to retry.
func (r *roomRepository) Save(ctx context.Context, room *domain.Room) error {
	filter := bson.M{"_id": room.ID, "version": room.Version}

	next := *room
	next.Version = room.Version + 1

	res, err := r.collection().ReplaceOne(ctx, filter, &next)
	if err != nil {
		return storageErr("save room", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrVersionConflict
	}

	room.Version = next.Version
	return nil
}

func (r *roomRepository) Delete(ctx context.Context, id string, version int64) error {
	res, err := r.collection().DeleteOne(ctx, bson.M{"_id": id, "version": version})
	if err != nil {
		return storageErr("delete room", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *roomRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"expires_at": bson.M{
			"$lte": now,
		},
	}

	res, err := r.collection().DeleteMany(ctx, filter)
	if err != nil {
		return 0, storageErr("delete expired rooms", err)
	}

	return res.DeletedCount, nil
}

func (r *roomRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "participants.connection_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return storageErr("create room indexes", err)
	}

	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
}
