package store

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/pkg/ctxutil"
)

// brokenStore 全部操作返回固定错误的后端（模拟远端不可达/本地写坏）
type brokenStore struct{ err error }

func (b *brokenStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	return nil, b.err
}
func (b *brokenStore) Set(ctx context.Context, scope, key string, value []byte) error {
	return b.err
}
func (b *brokenStore) List(ctx context.Context, scope string) (map[string][]byte, error) {
	return nil, b.err
}
func (b *brokenStore) Delete(ctx context.Context, scope, key string) error { return b.err }
func (b *brokenStore) DeleteAll(ctx context.Context, scope string) error   { return b.err }

func authedCtx() context.Context {
	return ctxutil.WithUserID(context.Background(), "user-1")
}

func TestDualStoreBackendSelection(t *testing.T) {
	Convey("双后端选择", t, func() {
		remote := NewMemStore()
		local := NewMemStore()
		d := NewDualStore(remote, local)

		Convey("访客（无身份）只走本地缓存", func() {
			ctx := context.Background()
			So(d.Set(ctx, ScopeEpisode, "b:1", []byte(`{"n":1}`)), ShouldBeNil)

			_, err := remote.Get(ctx, ScopeEpisode, "b:1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			data, err := local.Get(ctx, ScopeEpisode, "b:1")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"n":1}`)
		})

		Convey("登录用户写远端并镜像本地", func() {
			ctx := authedCtx()
			So(d.Set(ctx, ScopeEpisode, "b:1", []byte(`{"n":1}`)), ShouldBeNil)

			data, err := remote.Get(ctx, ScopeEpisode, "b:1")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"n":1}`)

			data, err = local.Get(ctx, ScopeEpisode, "b:1")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"n":1}`)
		})

		Convey("远端未配置时登录用户也走本地", func() {
			d2 := NewDualStore(nil, local)
			ctx := authedCtx()
			So(d2.Set(ctx, ScopeEpisode, "b:2", []byte(`{"n":2}`)), ShouldBeNil)

			data, err := local.Get(ctx, ScopeEpisode, "b:2")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"n":2}`)
		})
	})
}

func TestDualStoreMirrorSemantics(t *testing.T) {
	Convey("镜像写语义", t, func() {
		Convey("本地镜像写失败不致命", func() {
			remote := NewMemStore()
			d := NewDualStore(remote, &brokenStore{err: errors.New("disk full")})
			ctx := authedCtx()

			So(d.Set(ctx, ScopeEpisode, "b:1", []byte(`{}`)), ShouldBeNil)

			data, err := remote.Get(ctx, ScopeEpisode, "b:1")
			So(err, ShouldBeNil)
			So(data, ShouldNotBeNil)
		})

		Convey("远端写失败直接报错，不落本地", func() {
			local := NewMemStore()
			d := NewDualStore(&brokenStore{err: errors.New("network down")}, local)
			ctx := authedCtx()

			So(d.Set(ctx, ScopeEpisode, "b:1", []byte(`{}`)), ShouldNotBeNil)

			_, err := local.Get(ctx, ScopeEpisode, "b:1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("后写胜出", func() {
			d := NewDualStore(NewMemStore(), NewMemStore())
			ctx := authedCtx()

			So(d.Set(ctx, ScopeEpisode, "b:1", []byte(`{"v":1}`)), ShouldBeNil)
			So(d.Set(ctx, ScopeEpisode, "b:1", []byte(`{"v":2}`)), ShouldBeNil)

			data, err := d.Get(ctx, ScopeEpisode, "b:1")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"v":2}`)
		})
	})
}

func TestDualStoreReadPolicies(t *testing.T) {
	Convey("读取策略", t, func() {
		Convey("远端出错时 Get 降级本地", func() {
			local := NewMemStore()
			ctx := authedCtx()
			So(local.Set(ctx, ScopeEpisode, "b:1", []byte(`{"cached":true}`)), ShouldBeNil)

			d := NewDualStore(&brokenStore{err: errors.New("timeout")}, local)
			data, err := d.Get(ctx, ScopeEpisode, "b:1")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"cached":true}`)
		})

		Convey("远端 ErrNotFound 时 Get 不回落（选择语义）", func() {
			local := NewMemStore()
			ctx := authedCtx()
			So(local.Set(ctx, ScopeEpisode, "b:1", []byte(`{"cached":true}`)), ShouldBeNil)

			d := NewDualStore(NewMemStore(), local)
			_, err := d.Get(ctx, ScopeEpisode, "b:1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("GetWithFallback 在远端未命中时回落本地", func() {
			local := NewMemStore()
			ctx := authedCtx()
			So(local.Set(ctx, ScopeStoryBible, "b1", []byte(`{"title":"guest"}`)), ShouldBeNil)

			d := NewDualStore(NewMemStore(), local)
			data, err := d.GetWithFallback(ctx, ScopeStoryBible, "b1")
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"title":"guest"}`)
		})

		Convey("List 远端出错时降级本地", func() {
			local := NewMemStore()
			ctx := authedCtx()
			So(local.Set(ctx, ScopeEpisode, "b:1", []byte(`{}`)), ShouldBeNil)

			d := NewDualStore(&brokenStore{err: errors.New("timeout")}, local)
			m, err := d.List(ctx, ScopeEpisode)
			So(err, ShouldBeNil)
			So(len(m), ShouldEqual, 1)
		})
	})
}

func TestMemStore(t *testing.T) {
	Convey("进程内兜底存储", t, func() {
		m := NewMemStore()
		ctx := context.Background()

		Convey("读出的是写入值的副本", func() {
			value := []byte(`{"a":1}`)
			So(m.Set(ctx, ScopeChoice, "k", value), ShouldBeNil)

			got, err := m.Get(ctx, ScopeChoice, "k")
			So(err, ShouldBeNil)
			got[0] = 'X' // 调用方篡改不影响存储内容

			again, err := m.Get(ctx, ScopeChoice, "k")
			So(err, ShouldBeNil)
			So(string(again), ShouldEqual, `{"a":1}`)
		})

		Convey("DeleteAll 只清空目标作用域", func() {
			So(m.Set(ctx, ScopeEpisode, "k1", []byte(`1`)), ShouldBeNil)
			So(m.Set(ctx, ScopeChoice, "k2", []byte(`2`)), ShouldBeNil)
			So(m.DeleteAll(ctx, ScopeEpisode), ShouldBeNil)

			_, err := m.Get(ctx, ScopeEpisode, "k1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			_, err = m.Get(ctx, ScopeChoice, "k2")
			So(err, ShouldBeNil)
		})
	})
}
