package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ClientSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *Client
}

func (s *ClientSuite) SetupTest() {
	mr, err := miniredis.Run()
	require.NoError(s.T(), err)
	s.mr = mr
	s.client = NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func (s *ClientSuite) TearDownTest() {
	s.mr.Close()
}

func (s *ClientSuite) TestSetGetBytes() {
	ctx := context.Background()
	require.NoError(s.T(), s.client.SetBytes(ctx, "k", []byte("v"), 0))
	v, err := s.client.GetBytes(ctx, "k")
	require.NoError(s.T(), err)
	s.Equal([]byte("v"), v)
}

func (s *ClientSuite) TestGetMissingKeyReturnsNilNoError() {
	ctx := context.Background()
	v, err := s.client.GetBytes(ctx, "missing")
	require.NoError(s.T(), err)
	s.Nil(v)
}

func (s *ClientSuite) TestSetBytesWithTTL() {
	ctx := context.Background()
	require.NoError(s.T(), s.client.SetBytes(ctx, "k", []byte("v"), 30*time.Second))
	s.mr.FastForward(31 * time.Second)
	v, err := s.client.GetBytes(ctx, "k")
	require.NoError(s.T(), err)
	s.Nil(v)
}

func (s *ClientSuite) TestMGetBytesSkipsMisses() {
	ctx := context.Background()
	require.NoError(s.T(), s.client.SetBytes(ctx, "a", []byte("1"), 0))
	require.NoError(s.T(), s.client.SetBytes(ctx, "c", []byte("3"), 0))
	vals, err := s.client.MGetBytes(ctx, []string{"a", "b", "c"})
	require.NoError(s.T(), err)
	s.Equal([][]byte{[]byte("1"), []byte("3")}, vals)
}

func (s *ClientSuite) TestMGetBytesEmptyKeysShortCircuits() {
	ctx := context.Background()
	vals, err := s.client.MGetBytes(ctx, nil)
	require.NoError(s.T(), err)
	s.Nil(vals)
}

func (s *ClientSuite) TestMGetStringPreservesPositionalAlignmentOnMiss() {
	ctx := context.Background()
	require.NoError(s.T(), s.client.SetBytes(ctx, "gbf:translator:a", []byte("b"), 0))
	require.NoError(s.T(), s.client.SetBytes(ctx, "gbf:translator:c", []byte("d"), 0))

	vals, err := s.client.MGetString(ctx, []string{"gbf:translator:a", "gbf:translator:missing", "gbf:translator:c"})
	require.NoError(s.T(), err)
	s.Equal([]string{"b", "", "d"}, vals)
}

func (s *ClientSuite) TestSetMultipleStringAndExpire() {
	ctx := context.Background()
	require.NoError(s.T(), s.client.SetMultipleString(ctx, map[string]string{
		"gbf:translator:a": "b",
		"gbf:translator:b": "a",
	}))
	v, err := s.client.GetString(ctx, "gbf:translator:a")
	require.NoError(s.T(), err)
	s.Equal("b", v)

	require.NoError(s.T(), s.client.Expire(ctx, "gbf:translator:a", time.Second))
	s.mr.FastForward(2 * time.Second)
	v, err = s.client.GetString(ctx, "gbf:translator:a")
	require.NoError(s.T(), err)
	s.Equal("", v)
}

func (s *ClientSuite) TestKeysScansAllMatches() {
	ctx := context.Background()
	for _, k := range []string{"gbf:boss:120.a", "gbf:boss:120.b", "gbf:boss:130.c"} {
		require.NoError(s.T(), s.client.SetBytes(ctx, k, []byte("x"), 0))
	}
	keys, err := s.client.Keys(ctx, "gbf:boss:120.*")
	require.NoError(s.T(), err)
	s.ElementsMatch([]string{"gbf:boss:120.a", "gbf:boss:120.b"}, keys)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}
