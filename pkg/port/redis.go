package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/redcon"

	"github.com/kelvindb/kelvin/pkg/scan"
	"github.com/kelvindb/kelvin/pkg/store"
)

var address = flag.String("address", "0.0.0.0:6380", "The ip:port to listen on for the Redis protocol.")

var (
	scanCacheShards       = flag.Int("scan_cache_shards", 8, "Number of shards for the KEYS/SCAN pattern match cache.")
	scanCachePerShardCap  = flag.Int("scan_cache_capacity_per_shard", 256, "Per-shard capacity of the KEYS/SCAN pattern match cache.")
	scanCacheTTL          = flag.Duration("scan_cache_ttl", 2*time.Second, "How long a cached KEYS/SCAN match stays valid.")
	scanCacheTickInterval = flag.Duration("scan_cache_tick_interval", time.Second, "Reaper tick interval for the scan cache.")
)

// RedisCommand is a parsed Redis command ready for dispatch.
type RedisCommand struct {
	name string
	args [][]byte
}

// RedisOutput is how a handler tells the connection loop what to write back.
type RedisOutput struct {
	closeConnection bool
	writeNil        bool
	err             *string
	writeInt        *int
	writeBulk       []byte
	isArray         bool
	writeArray      [][]byte // elements render as bulk strings unless arrayHasNils marks them nil.
	arrayHasNils    []bool   // parallel to writeArray; true means render nil at that index.
}

func closeRedisConnection(msg string) RedisOutput { return RedisOutput{writeBulk: []byte(msg), closeConnection: true} }
func writeRedisNil() RedisOutput                  { return RedisOutput{writeNil: true} }
func writeRedisInt(i int) RedisOutput             { return RedisOutput{writeInt: &i} }
func writeRedisBulk(b []byte) RedisOutput         { return RedisOutput{writeBulk: b} }
func writeRedisString(s string) RedisOutput       { return RedisOutput{writeBulk: []byte(s)} }
func writeRedisError(err error) RedisOutput {
	msg := "ERR " + err.Error()
	return RedisOutput{err: &msg}
}
func writeRedisArray(items [][]byte) RedisOutput { return RedisOutput{isArray: true, writeArray: items} }

func wrongArgs(cmd string) RedisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(cmd)))
}

// Server wires a store.Store behind the Redis wire protocol. Every command
// handler runs on store.Run(loop, ...), so no two commands and no
// expiration sweep ever execute concurrently against the store, matching
// its single-execution-context contract.
type Server struct {
	store        *store.Store
	loop         *store.Loop
	patternCache *scan.PatternCache
	digest       *store.Digest
}

// NewServer constructs a Server around an already-running store and loop.
func NewServer(ctx context.Context, st *store.Store, loop *store.Loop) *Server {
	return &Server{
		store:        st,
		loop:         loop,
		patternCache: scan.NewPatternCache(ctx, *scanCacheShards, *scanCachePerShardCap, *scanCacheTTL, *scanCacheTickInterval),
		digest:       store.NewDigest(1<<16, 0.01),
	}
}

func keyHashOf(key []byte) uint64 { return xxhash.Sum64(key) }

func (srv *Server) handle(cmd RedisCommand) RedisOutput {
	switch cmd.name {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection("OK")
	case "FLUSHALL", "FLUSHDB":
		store.Run(srv.loop, func() any { srv.store.FlushAll(); return nil })
		srv.patternCache.Invalidate()
		return writeRedisString("OK")
	case "DBSIZE":
		return writeRedisInt(store.Run(srv.loop, func() int { return srv.store.Size() }))
	case "EXISTS":
		if len(cmd.args) < 1 {
			return wrongArgs(cmd.name)
		}
		return writeRedisInt(store.Run(srv.loop, func() int {
			count := 0
			for _, key := range cmd.args {
				if srv.store.Exists(key, keyHashOf(key)) {
					count++
				}
			}
			return count
		}))
	case "DEL":
		if len(cmd.args) < 1 {
			return wrongArgs(cmd.name)
		}
		return writeRedisInt(store.Run(srv.loop, func() int {
			count := 0
			for _, key := range cmd.args {
				if srv.store.Erase(key, keyHashOf(key)) {
					count++
				}
			}
			return count
		}))
	case "TYPE":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.name)
		}
		return writeRedisString(store.Run(srv.loop, func() string {
			kind := "none"
			srv.store.Get(cmd.args[0], keyHashOf(cmd.args[0]), func(v *store.View, found bool) {
				if found {
					kind = v.Kind().String()
				}
			})
			return kind
		}))
	case "TTL", "PTTL":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.name)
		}
		ttlMs := store.Run(srv.loop, func() int64 {
			return srv.store.TTLMillis(cmd.args[0], keyHashOf(cmd.args[0]))
		})
		if cmd.name == "TTL" && ttlMs > 0 {
			ttlMs = (ttlMs + 999) / 1000 // Round up to whole seconds.
		}
		return writeRedisInt(int(ttlMs))
	case "EXPIRE", "PEXPIRE":
		if len(cmd.args) != 2 {
			return wrongArgs(cmd.name)
		}
		n, err := strconv.ParseInt(string(cmd.args[1]), 10, 64)
		if err != nil {
			return writeRedisError(errors.New("value is not an integer or out of range"))
		}
		ttlMs := n * 1000
		if cmd.name == "PEXPIRE" {
			ttlMs = n
		}
		applied := store.Run(srv.loop, func() bool {
			return srv.store.Expire(cmd.args[0], keyHashOf(cmd.args[0]), ttlMs)
		})
		return writeRedisInt(boolToInt(applied))
	case "PERSIST":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.name)
		}
		applied := store.Run(srv.loop, func() bool {
			return srv.store.Persist(cmd.args[0], keyHashOf(cmd.args[0]))
		})
		return writeRedisInt(boolToInt(applied))
	case "KEYS":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.name)
		}
		return writeRedisArray(srv.matchKeys(cmd.args[0]))
	case "SCAN":
		// Simplified single-pass SCAN: always returns cursor "0" (done) plus
		// every matching key, since the store has no stable bucket-order
		// cursor to resume from across rehashes.
		pattern := []byte("*")
		for i := 1; i+1 < len(cmd.args); i += 2 {
			if strings.EqualFold(string(cmd.args[i]), "MATCH") {
				pattern = cmd.args[i+1]
			}
		}
		matches := srv.matchKeys(pattern)
		result := make([][]byte, 0, len(matches)+1)
		result = append(result, []byte("0"))
		result = append(result, matches...)
		return writeRedisArray(result)
	case "GET":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.name)
		}
		return srv.handleGet(cmd.args[0])
	case "SET":
		if len(cmd.args) < 2 {
			return wrongArgs(cmd.name)
		}
		return srv.handleSet(cmd.args)
	case "APPEND":
		if len(cmd.args) != 2 {
			return wrongArgs(cmd.name)
		}
		return srv.handleAppend(cmd.args[0], cmd.args[1])
	case "STRLEN":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.name)
		}
		return srv.handleStrlen(cmd.args[0])
	case "INCR":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.name)
		}
		return srv.handleIncrBy(cmd.args[0], 1)
	case "DECR":
		if len(cmd.args) != 1 {
			return wrongArgs(cmd.name)
		}
		return srv.handleIncrBy(cmd.args[0], -1)
	case "INCRBY":
		if len(cmd.args) != 2 {
			return wrongArgs(cmd.name)
		}
		delta, err := strconv.ParseInt(string(cmd.args[1]), 10, 64)
		if err != nil {
			return writeRedisError(errors.New("value is not an integer or out of range"))
		}
		return srv.handleIncrBy(cmd.args[0], delta)
	case "DECRBY":
		if len(cmd.args) != 2 {
			return wrongArgs(cmd.name)
		}
		delta, err := strconv.ParseInt(string(cmd.args[1]), 10, 64)
		if err != nil {
			return writeRedisError(errors.New("value is not an integer or out of range"))
		}
		return srv.handleIncrBy(cmd.args[0], -delta)
	case "INCRBYFLOAT":
		if len(cmd.args) != 2 {
			return wrongArgs(cmd.name)
		}
		delta, err := strconv.ParseFloat(string(cmd.args[1]), 64)
		if err != nil {
			return writeRedisError(errors.New("value is not a valid float"))
		}
		return srv.handleIncrByFloat(cmd.args[0], delta)

	// List commands.
	case "LPUSH", "RPUSH":
		return srv.handlePush(cmd.name, cmd.args)
	case "LPOP", "RPOP":
		return srv.handlePop(cmd.name, cmd.args)
	case "LLEN":
		return srv.handleLlen(cmd.args)
	case "LRANGE":
		return srv.handleLrange(cmd.args)
	case "LINDEX":
		return srv.handleLindex(cmd.args)
	case "LSET":
		return srv.handleLset(cmd.args)

	// Hash commands.
	case "HSET":
		return srv.handleHset(cmd.args)
	case "HGET":
		return srv.handleHget(cmd.args)
	case "HDEL":
		return srv.handleHdel(cmd.args)
	case "HEXISTS":
		return srv.handleHexists(cmd.args)
	case "HLEN":
		return srv.handleHlen(cmd.args)
	case "HGETALL":
		return srv.handleHgetall(cmd.args)
	case "HKEYS":
		return srv.handleHkeys(cmd.args)

	// Set commands.
	case "SADD":
		return srv.handleSadd(cmd.args)
	case "SREM":
		return srv.handleSrem(cmd.args)
	case "SISMEMBER":
		return srv.handleSismember(cmd.args)
	case "SCARD":
		return srv.handleScard(cmd.args)
	case "SMEMBERS":
		return srv.handleSmembers(cmd.args)

	// Sorted-set commands.
	case "ZADD":
		return srv.handleZadd(cmd.args)
	case "ZSCORE":
		return srv.handleZscore(cmd.args)
	case "ZCARD":
		return srv.handleZcard(cmd.args)
	case "ZREM":
		return srv.handleZrem(cmd.args)
	case "ZRANGE":
		return srv.handleZrange(cmd.args)
	case "ZRANGEBYSCORE":
		return srv.handleZrangebyscore(cmd.args)
	case "ZUNIONSTORE", "ZINTERSTORE":
		return srv.handleZStore(cmd.name, cmd.args)

	// HyperLogLog commands.
	case "PFADD":
		return srv.handlePfadd(cmd.args)
	case "PFCOUNT":
		return srv.handlePfcount(cmd.args)
	case "PFMERGE":
		return srv.handlePfmerge(cmd.args)

	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.name))
	}
}

func (srv *Server) matchKeys(pattern []byte) [][]byte {
	patternStr := string(pattern)
	if cached, ok := srv.patternCache.Get(patternStr); ok {
		return cached
	}
	matches := store.Run(srv.loop, func() [][]byte {
		var result [][]byte
		for key := range scan.MatchKeys(pattern, srv.store.Keys) {
			result = append(result, append([]byte(nil), key...))
		}
		return result
	})
	srv.patternCache.Put(patternStr, matches)
	return matches
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RunServer starts the Redis protocol server described by the -address
// flag, serving st through loop until ctx is cancelled.
func RunServer(ctx context.Context, st *store.Store, loop *store.Loop) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}
	srv := NewServer(ctx, st, loop)

	redisServer := redcon.NewServerNetwork("tcp", *address,
		func(conn redcon.Conn, rawCmd redcon.Command) {
			slog.Debug("Handling command.", "cmd", string(rawCmd.Raw))
			cmd := RedisCommand{name: strings.ToUpper(string(rawCmd.Args[0])), args: rawCmd.Args[1:]}
			output := srv.handle(cmd)
			writeRedisOutput(conn, output)
		},
		func(conn redcon.Conn) bool {
			slog.Info("Accepting connection.", "addr", conn.NetConn().RemoteAddr().String())
			return true
		},
		func(conn redcon.Conn, err error) {},
	)

	serverErrSignal := make(chan error, 1)
	go func() {
		slog.Info("Starting Redis server.", "address", *address)
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server context cancelled.", "err", ctx.Err())
		return redisServer.Close()
	case err := <-serverErrSignal:
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}
}

func writeRedisOutput(conn redcon.Conn, output RedisOutput) {
	if output.closeConnection {
		conn.WriteBulk(output.writeBulk)
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close connection.", "error", err)
		}
		return
	}
	if output.isArray {
		conn.WriteArray(len(output.writeArray))
		for i, item := range output.writeArray {
			if i < len(output.arrayHasNils) && output.arrayHasNils[i] {
				conn.WriteNull()
				continue
			}
			conn.WriteBulk(item)
		}
		return
	}
	if output.writeNil {
		conn.WriteNull()
		return
	}
	if output.err != nil {
		conn.WriteError(*output.err)
		return
	}
	if output.writeInt != nil {
		conn.WriteInt(*output.writeInt)
		return
	}
	conn.WriteBulk(output.writeBulk)
}
