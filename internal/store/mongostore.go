package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fable/internal/pkg/apperr"
	"fable/internal/pkg/ctxutil"
)

// Collection 存储文档集合名
const Collection = "store_documents"

// document KV 文档
// 远端权威存储按用户身份分隔：owner 即登录用户ID，
// 等价于传统的 users/{id}/{scope}/{key} 路径。
type document struct {
	Owner     string    `bson:"owner"`
	Scope     string    `bson:"scope"`
	Key       string    `bson:"key"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore 远端权威存储后端
// 用户身份从 context 中解析（认证中间件注入）；
// DualStore 只在身份存在时把请求路由到这里。
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore 创建远端存储后端
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(Collection)}
}

// EnsureIndexes 创建和维护索引
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner", Value: 1},
				{Key: "scope", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetName("uniq_owner_scope_key").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_owner_updated"),
		},
	}
	_, err := s.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// owner 从 context 解析用户身份
func (s *MongoStore) owner(ctx context.Context) (string, error) {
	userID, ok := ctxutil.GetUserID(ctx)
	if !ok {
		return "", fmt.Errorf("%w: no identity in context", apperr.ErrStoreUnavailable)
	}
	return userID, nil
}

// Get 读取键值
func (s *MongoStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	var doc document
	err = s.coll.FindOne(ctx, bson.M{"owner": owner, "scope": scope, "key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return doc.Value, nil
}

// Set 写入键值（upsert，文档级原子）
func (s *MongoStore) Set(ctx context.Context, scope, key string, value []byte) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}

	filter := bson.M{"owner": owner, "scope": scope, "key": key}
	update := bson.M{"$set": bson.M{
		"value":      value,
		"updated_at": time.Now(),
	}}
	_, err = s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// List 列出当前用户某作用域的全部键值
func (s *MongoStore) List(ctx context.Context, scope string) (map[string][]byte, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := s.coll.Find(ctx, bson.M{"owner": owner, "scope": scope})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	defer cur.Close(ctx)

	result := make(map[string][]byte)
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
		}
		result[doc.Key] = doc.Value
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return result, nil
}

// Delete 删除单个键
func (s *MongoStore) Delete(ctx context.Context, scope, key string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}

	_, err = s.coll.DeleteOne(ctx, bson.M{"owner": owner, "scope": scope, "key": key})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteAll 清空当前用户的某作用域
func (s *MongoStore) DeleteAll(ctx context.Context, scope string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}

	_, err = s.coll.DeleteMany(ctx, bson.M{"owner": owner, "scope": scope})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}
