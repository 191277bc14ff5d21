package port

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/kelvindb/kelvin/pkg/container"
	"github.com/kelvindb/kelvin/pkg/store"
)

// SET key value [NX|XX] [GET] [KEEPTTL] [EX s|PX ms|EXAT sec|PXAT ms]

func (srv *Server) handleSet(args [][]byte) RedisOutput {
	key, value := args[0], args[1]
	var nx, xx, get, keepTTL bool
	var ttlMs int64

	i := 2
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "NX":
			nx = true
			i++
		case "XX":
			xx = true
			i++
		case "GET":
			get = true
			i++
		case "KEEPTTL":
			keepTTL = true
			i++
		case "EX", "PX", "EXAT", "PXAT":
			kind := strings.ToUpper(string(args[i]))
			if i+1 >= len(args) {
				return writeRedisError(errors.New("syntax error"))
			}
			n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil {
				return writeRedisError(errors.New("value is not an integer or out of range"))
			}
			switch kind {
			case "EX":
				ttlMs = n * 1000
			case "PX":
				ttlMs = n
			case "EXAT":
				ttlMs = n*1000 - time.Now().UnixMilli()
			case "PXAT":
				ttlMs = n - time.Now().UnixMilli()
			}
			if ttlMs < 0 {
				ttlMs = 0
			}
			i += 2
		default:
			return writeRedisError(errors.New("syntax error"))
		}
	}
	if keepTTL && ttlMs > 0 {
		return writeRedisError(errors.New("syntax error: KEEPTTL cannot be combined with EX/PX/EXAT/PXAT"))
	}

	type outcome struct {
		result store.SetStringResult
		err    error
	}
	out := store.Run(srv.loop, func() outcome {
		result, err := srv.store.SetString(key, keyHashOf(key), value, ttlMs, nx, xx, keepTTL, get)
		if err == nil && result.Applied {
			srv.digest.Observe(key)
		}
		return outcome{result, err}
	})
	result, err := out.result, out.err
	if err != nil {
		return writeRedisError(err)
	}
	if get {
		if result.HasPreviousValue {
			return writeRedisBulk(result.PreviousValue)
		}
		return writeRedisNil()
	}
	if !result.Applied {
		return writeRedisNil()
	}
	return writeRedisString("OK")
}

func (srv *Server) handleGet(key []byte) RedisOutput {
	return store.Run(srv.loop, func() RedisOutput {
		if !srv.digest.MaybeContains(key) {
			return writeRedisNil() // Digest guarantees absence; skip the index lookup entirely.
		}
		var out RedisOutput
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				out = writeRedisNil()
				return
			}
			blob, err := v.ValueBlob()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisBulk(append([]byte(nil), blob.Bytes()...))
		})
		return out
	})
}

func (srv *Server) handleAppend(key, suffix []byte) RedisOutput {
	return store.Run(srv.loop, func() RedisOutput {
		var out RedisOutput
		found := false
		srv.store.Get(key, keyHashOf(key), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			blob, err := v.ValueBlob()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(blob.Append(suffix))
		})
		if !found {
			entry := store.NewBytesEntry(append([]byte(nil), key...), keyHashOf(key), append([]byte(nil), suffix...))
			srv.store.Replace(entry)
			srv.digest.Observe(key)
			out = writeRedisInt(len(suffix))
		}
		return out
	})
}

func (srv *Server) handleStrlen(key []byte) RedisOutput {
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			blob, err := v.ValueBlob()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(blob.Len())
		})
		return out
	})
}

func (srv *Server) handleIncrBy(key []byte, delta int64) RedisOutput {
	return store.Run(srv.loop, func() RedisOutput {
		var out RedisOutput
		found := false
		srv.store.Get(key, keyHashOf(key), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			newVal, err := v.IncrInt64(delta)
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(int(newVal))
		})
		if !found {
			entry := store.NewInt64Entry(append([]byte(nil), key...), keyHashOf(key), delta)
			srv.store.Replace(entry)
			srv.digest.Observe(key)
			out = writeRedisInt(int(delta))
		}
		return out
	})
}

func (srv *Server) handleIncrByFloat(key []byte, delta float64) RedisOutput {
	return store.Run(srv.loop, func() RedisOutput {
		var out RedisOutput
		found := false
		srv.store.Get(key, keyHashOf(key), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			newVal, err := v.IncrFloat(delta)
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisString(strconv.FormatFloat(newVal, 'g', -1, 64))
		})
		if !found {
			entry := store.NewFloatEntry(append([]byte(nil), key...), keyHashOf(key), delta)
			srv.store.Replace(entry)
			srv.digest.Observe(key)
			out = writeRedisString(strconv.FormatFloat(delta, 'g', -1, 64))
		}
		return out
	})
}

// List commands.

func (srv *Server) handlePush(name string, args [][]byte) RedisOutput {
	if len(args) < 2 {
		return wrongArgs(name)
	}
	key, values := args[0], args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		var out RedisOutput
		found := false
		srv.store.Get(key, keyHashOf(key), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			list, err := v.ValueList()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			pushAll(list, name, values)
			out = writeRedisInt(list.Len())
		})
		if !found {
			entry := store.NewListEntry(append([]byte(nil), key...), keyHashOf(key))
			list, _ := entry.ValueList()
			pushAll(list, name, values)
			srv.store.Replace(entry)
			srv.digest.Observe(key)
			out = writeRedisInt(list.Len())
		}
		return out
	})
}

func pushAll(list *container.List, name string, values [][]byte) {
	for _, value := range values {
		v := append([]byte(nil), value...)
		if name == "LPUSH" {
			list.PushFront(v)
		} else {
			list.PushBack(v)
		}
	}
}

func (srv *Server) handlePop(name string, args [][]byte) RedisOutput {
	if len(args) != 1 {
		return wrongArgs(name)
	}
	key := args[0]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisNil()
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			list, err := v.ValueList()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			var value []byte
			var ok bool
			if name == "LPOP" {
				value, ok = list.PopFront()
			} else {
				value, ok = list.PopBack()
			}
			if ok {
				out = writeRedisBulk(value)
			}
		})
		return out
	})
}

func (srv *Server) handleLlen(args [][]byte) RedisOutput {
	if len(args) != 1 {
		return wrongArgs("LLEN")
	}
	key := args[0]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			list, err := v.ValueList()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(list.Len())
		})
		return out
	})
}

func (srv *Server) handleLrange(args [][]byte) RedisOutput {
	if len(args) != 3 {
		return wrongArgs("LRANGE")
	}
	key := args[0]
	start, err1 := strconv.Atoi(string(args[1]))
	stop, err2 := strconv.Atoi(string(args[2]))
	if err1 != nil || err2 != nil {
		return writeRedisError(errors.New("value is not an integer or out of range"))
	}
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisArray(nil)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			list, err := v.ValueList()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisArray(list.Range(start, stop))
		})
		return out
	})
}

func (srv *Server) handleLindex(args [][]byte) RedisOutput {
	if len(args) != 2 {
		return wrongArgs("LINDEX")
	}
	key := args[0]
	idx, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return writeRedisError(errors.New("value is not an integer or out of range"))
	}
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisNil()
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			list, err := v.ValueList()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			if value, ok := list.Index(idx); ok {
				out = writeRedisBulk(value)
			}
		})
		return out
	})
}

func (srv *Server) handleLset(args [][]byte) RedisOutput {
	if len(args) != 3 {
		return wrongArgs("LSET")
	}
	key := args[0]
	idx, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return writeRedisError(errors.New("value is not an integer or out of range"))
	}
	value := args[2]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisError(errors.New("no such key"))
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			list, err := v.ValueList()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			if list.Set(idx, append([]byte(nil), value...)) {
				out = writeRedisString("OK")
			} else {
				out = writeRedisError(errors.New("index out of range"))
			}
		})
		return out
	})
}

// Hash commands.

func (srv *Server) handleHset(args [][]byte) RedisOutput {
	if len(args) < 3 || len(args)%2 != 1 {
		return wrongArgs("HSET")
	}
	key := args[0]
	pairs := args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		added := 0
		apply := func(dict *container.Dict[[]byte]) {
			for i := 0; i+1 < len(pairs); i += 2 {
				if isNew := dict.Set(string(pairs[i]), append([]byte(nil), pairs[i+1]...)); isNew {
					added++
				}
			}
		}
		var out RedisOutput
		found := false
		srv.store.Get(key, keyHashOf(key), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			apply(dict)
		})
		if !found {
			entry := store.NewHashEntry(append([]byte(nil), key...), keyHashOf(key))
			dict, _ := entry.ValueDict()
			apply(dict)
			srv.store.Replace(entry)
			srv.digest.Observe(key)
		}
		if out.err == nil {
			out = writeRedisInt(added)
		}
		return out
	})
}

func (srv *Server) handleHget(args [][]byte) RedisOutput {
	if len(args) != 2 {
		return wrongArgs("HGET")
	}
	key, field := args[0], string(args[1])
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisNil()
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			if value, ok := dict.Get(field); ok {
				out = writeRedisBulk(value)
			}
		})
		return out
	})
}

func (srv *Server) handleHdel(args [][]byte) RedisOutput {
	if len(args) < 2 {
		return wrongArgs("HDEL")
	}
	key, fields := args[0], args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			removed := 0
			for _, field := range fields {
				if dict.Delete(string(field)) {
					removed++
				}
			}
			out = writeRedisInt(removed)
		})
		return out
	})
}

func (srv *Server) handleHexists(args [][]byte) RedisOutput {
	if len(args) != 2 {
		return wrongArgs("HEXISTS")
	}
	key, field := args[0], string(args[1])
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(boolToInt(dict.Has(field)))
		})
		return out
	})
}

func (srv *Server) handleHlen(args [][]byte) RedisOutput {
	if len(args) != 1 {
		return wrongArgs("HLEN")
	}
	key := args[0]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(dict.Len())
		})
		return out
	})
}

func (srv *Server) handleHkeys(args [][]byte) RedisOutput {
	if len(args) != 1 {
		return wrongArgs("HKEYS")
	}
	key := args[0]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisArray(nil)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			var fields [][]byte
			dict.Each(func(field string, _ []byte) {
				fields = append(fields, []byte(field))
			})
			out = writeRedisArray(fields)
		})
		return out
	})
}

func (srv *Server) handleHgetall(args [][]byte) RedisOutput {
	if len(args) != 1 {
		return wrongArgs("HGETALL")
	}
	key := args[0]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisArray(nil)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			var flat [][]byte
			dict.Each(func(field string, value []byte) {
				flat = append(flat, []byte(field), value)
			})
			out = writeRedisArray(flat)
		})
		return out
	})
}

// Set commands (Dict with nil-ish placeholder values; presence is membership).

var setMember = []byte{}

func (srv *Server) handleSadd(args [][]byte) RedisOutput {
	if len(args) < 2 {
		return wrongArgs("SADD")
	}
	key, members := args[0], args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		added := 0
		apply := func(dict *container.Dict[[]byte]) {
			for _, m := range members {
				if isNew := dict.Set(string(m), setMember); isNew {
					added++
				}
			}
		}
		var out RedisOutput
		found := false
		srv.store.Get(key, keyHashOf(key), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			apply(dict)
		})
		if !found {
			entry := store.NewSetEntry(append([]byte(nil), key...), keyHashOf(key))
			dict, _ := entry.ValueDict()
			apply(dict)
			srv.store.Replace(entry)
			srv.digest.Observe(key)
		}
		if out.err == nil {
			out = writeRedisInt(added)
		}
		return out
	})
}

func (srv *Server) handleSrem(args [][]byte) RedisOutput {
	if len(args) < 2 {
		return wrongArgs("SREM")
	}
	key, members := args[0], args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			removed := 0
			for _, m := range members {
				if dict.Delete(string(m)) {
					removed++
				}
			}
			out = writeRedisInt(removed)
		})
		return out
	})
}

func (srv *Server) handleSismember(args [][]byte) RedisOutput {
	if len(args) != 2 {
		return wrongArgs("SISMEMBER")
	}
	key, member := args[0], string(args[1])
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(boolToInt(dict.Has(member)))
		})
		return out
	})
}

func (srv *Server) handleScard(args [][]byte) RedisOutput {
	if len(args) != 1 {
		return wrongArgs("SCARD")
	}
	key := args[0]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(dict.Len())
		})
		return out
	})
}

func (srv *Server) handleSmembers(args [][]byte) RedisOutput {
	if len(args) != 1 {
		return wrongArgs("SMEMBERS")
	}
	key := args[0]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisArray(nil)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			dict, err := v.ValueDict()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			fields := dict.Fields()
			members := make([][]byte, len(fields))
			for i, f := range fields {
				members[i] = []byte(f)
			}
			out = writeRedisArray(members)
		})
		return out
	})
}

// Sorted-set commands.

func (srv *Server) handleZadd(args [][]byte) RedisOutput {
	if len(args) < 3 || len(args)%2 != 1 {
		return wrongArgs("ZADD")
	}
	key := args[0]
	pairs := args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		apply := func(zset *container.SortedSet) (int, error) {
			added := 0
			for i := 0; i+1 < len(pairs); i += 2 {
				score, err := strconv.ParseFloat(string(pairs[i]), 64)
				if err != nil {
					return added, errors.New("value is not a valid float")
				}
				if zset.Add(string(pairs[i+1]), score) {
					added++
				}
			}
			return added, nil
		}
		var out RedisOutput
		found := false
		srv.store.Get(key, keyHashOf(key), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			zset, err := v.ValueSortedSet()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			added, perr := apply(zset)
			if perr != nil {
				out = writeRedisError(perr)
				return
			}
			out = writeRedisInt(added)
		})
		if !found && out.err == nil {
			entry := store.NewSortedSetEntry(append([]byte(nil), key...), keyHashOf(key))
			zset, _ := entry.ValueSortedSet()
			added, perr := apply(zset)
			if perr != nil {
				return writeRedisError(perr)
			}
			srv.store.Replace(entry)
			srv.digest.Observe(key)
			out = writeRedisInt(added)
		}
		return out
	})
}

func (srv *Server) handleZscore(args [][]byte) RedisOutput {
	if len(args) != 2 {
		return wrongArgs("ZSCORE")
	}
	key, member := args[0], string(args[1])
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisNil()
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			zset, err := v.ValueSortedSet()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			if score, ok := zset.Score(member); ok {
				out = writeRedisString(strconv.FormatFloat(score, 'g', -1, 64))
			}
		})
		return out
	})
}

func (srv *Server) handleZcard(args [][]byte) RedisOutput {
	if len(args) != 1 {
		return wrongArgs("ZCARD")
	}
	key := args[0]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			zset, err := v.ValueSortedSet()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisInt(zset.Len())
		})
		return out
	})
}

func (srv *Server) handleZrem(args [][]byte) RedisOutput {
	if len(args) < 2 {
		return wrongArgs("ZREM")
	}
	key, members := args[0], args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisInt(0)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			zset, err := v.ValueSortedSet()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			removed := 0
			for _, m := range members {
				if zset.Remove(string(m)) {
					removed++
				}
			}
			out = writeRedisInt(removed)
		})
		return out
	})
}

func zsetPairsToBulk(pairs []container.Pair, withScores bool) [][]byte {
	items := make([][]byte, 0, len(pairs)*2)
	for _, p := range pairs {
		items = append(items, []byte(p.Member))
		if withScores {
			items = append(items, []byte(strconv.FormatFloat(p.Score, 'g', -1, 64)))
		}
	}
	return items
}

func (srv *Server) handleZrange(args [][]byte) RedisOutput {
	if len(args) < 3 {
		return wrongArgs("ZRANGE")
	}
	key := args[0]
	start, err1 := strconv.Atoi(string(args[1]))
	stop, err2 := strconv.Atoi(string(args[2]))
	if err1 != nil || err2 != nil {
		return writeRedisError(errors.New("value is not an integer or out of range"))
	}
	withScores := len(args) == 4 && strings.EqualFold(string(args[3]), "WITHSCORES")
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisArray(nil)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			zset, err := v.ValueSortedSet()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisArray(zsetPairsToBulk(zset.Range(start, stop), withScores))
		})
		return out
	})
}

func (srv *Server) handleZrangebyscore(args [][]byte) RedisOutput {
	if len(args) < 3 {
		return wrongArgs("ZRANGEBYSCORE")
	}
	key := args[0]
	min, err1 := strconv.ParseFloat(string(args[1]), 64)
	max, err2 := strconv.ParseFloat(string(args[2]), 64)
	if err1 != nil || err2 != nil {
		return writeRedisError(errors.New("min or max is not a float"))
	}
	withScores := len(args) == 4 && strings.EqualFold(string(args[3]), "WITHSCORES")
	return store.Run(srv.loop, func() RedisOutput {
		out := writeRedisArray(nil)
		srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
			if !found {
				return
			}
			zset, err := v.ValueSortedSet()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			out = writeRedisArray(zsetPairsToBulk(zset.RangeByScore(min, max), withScores))
		})
		return out
	})
}

// ZUNIONSTORE/ZINTERSTORE destination numkeys key [key ...]
//	[WEIGHTS weight [weight ...]] [AGGREGATE SUM|MIN|MAX]

func parseZStoreArgs(args [][]byte) (dest []byte, keys [][]byte, weights []float64, aggregate string, err error) {
	if len(args) < 2 {
		return nil, nil, nil, "", errors.New("wrong number of arguments")
	}
	dest = args[0]
	numKeys, err := strconv.Atoi(string(args[1]))
	if err != nil || numKeys <= 0 || len(args) < 2+numKeys {
		return nil, nil, nil, "", errors.New("numkeys should be greater than 0")
	}
	keys = args[2 : 2+numKeys]
	weights = make([]float64, numKeys)
	for i := range weights {
		weights[i] = 1
	}
	aggregate = "SUM"

	i := 2 + numKeys
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "WEIGHTS":
			if i+numKeys >= len(args) {
				return nil, nil, nil, "", errors.New("syntax error")
			}
			for j := 0; j < numKeys; j++ {
				w, werr := strconv.ParseFloat(string(args[i+1+j]), 64)
				if werr != nil {
					return nil, nil, nil, "", errors.New("weight value is not a float")
				}
				weights[j] = w
			}
			i += 1 + numKeys
		case "AGGREGATE":
			if i+1 >= len(args) {
				return nil, nil, nil, "", errors.New("syntax error")
			}
			aggregate = strings.ToUpper(string(args[i+1]))
			if aggregate != "SUM" && aggregate != "MIN" && aggregate != "MAX" {
				return nil, nil, nil, "", errors.New("syntax error")
			}
			i += 2
		default:
			return nil, nil, nil, "", errors.New("syntax error")
		}
	}
	return dest, keys, weights, aggregate, nil
}

func combineScore(aggregate string, acc float64, has bool, score float64) float64 {
	if !has {
		return score
	}
	switch aggregate {
	case "MIN":
		if score < acc {
			return score
		}
		return acc
	case "MAX":
		if score > acc {
			return score
		}
		return acc
	default: // SUM
		return acc + score
	}
}

func (srv *Server) handleZStore(name string, args [][]byte) RedisOutput {
	dest, keys, weights, aggregate, perr := parseZStoreArgs(args)
	if perr != nil {
		return writeRedisError(perr)
	}
	return store.Run(srv.loop, func() RedisOutput {
		result := make(map[string]float64)
		hitCount := make(map[string]int)
		for i, key := range keys {
			var handlerErr error
			srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
				if !found {
					return
				}
				zset, verr := v.ValueSortedSet()
				if verr != nil {
					handlerErr = store.WrongKind
					return
				}
				for _, p := range zset.All() {
					weighted := p.Score * weights[i]
					acc, has := result[p.Member]
					result[p.Member] = combineScore(aggregate, acc, has, weighted)
					hitCount[p.Member]++
				}
			})
			if handlerErr != nil {
				return writeRedisError(handlerErr)
			}
		}
		if name == "ZINTERSTORE" {
			for member, count := range hitCount {
				if count != len(keys) {
					delete(result, member)
				}
			}
		}

		entry := store.NewSortedSetEntry(append([]byte(nil), dest...), keyHashOf(dest))
		zset, _ := entry.ValueSortedSet()
		for member, score := range result {
			zset.Add(member, score)
		}
		srv.store.Replace(entry)
		srv.digest.Observe(dest)
		return writeRedisInt(len(result))
	})
}

// HyperLogLog commands.

func (srv *Server) handlePfadd(args [][]byte) RedisOutput {
	if len(args) < 1 {
		return wrongArgs("PFADD")
	}
	key, elements := args[0], args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		var out RedisOutput
		found := false
		changed := false
		srv.store.Get(key, keyHashOf(key), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			blob, err := v.ValueBlob()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			for _, e := range elements {
				if store.PFAdd(blob, e) {
					changed = true
				}
			}
		})
		if !found {
			entry := store.NewHLLEntry(append([]byte(nil), key...), keyHashOf(key))
			blob, _ := entry.ValueBlob()
			for _, e := range elements {
				if store.PFAdd(blob, e) {
					changed = true
				}
			}
			srv.store.Replace(entry)
			srv.digest.Observe(key)
		}
		if out.err == nil {
			out = writeRedisInt(boolToInt(changed))
		}
		return out
	})
}

func (srv *Server) handlePfcount(args [][]byte) RedisOutput {
	if len(args) < 1 {
		return wrongArgs("PFCOUNT")
	}
	return store.Run(srv.loop, func() RedisOutput {
		if len(args) == 1 {
			out := writeRedisInt(0)
			srv.store.Get(args[0], keyHashOf(args[0]), func(v *store.View, found bool) {
				if !found {
					return
				}
				blob, err := v.ValueBlob()
				if err != nil {
					out = writeRedisError(store.WrongKind)
					return
				}
				out = writeRedisInt(int(store.PFCount(blob)))
			})
			return out
		}
		merged := container.NewBlob(make([]byte, store.HLLBytesSize))
		var out RedisOutput
		for _, key := range args {
			srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
				if !found {
					return
				}
				blob, err := v.ValueBlob()
				if err != nil {
					out = writeRedisError(store.WrongKind)
					return
				}
				store.PFMerge(merged, blob)
			})
			if out.err != nil {
				return out
			}
		}
		return writeRedisInt(int(store.PFCount(merged)))
	})
}

func (srv *Server) handlePfmerge(args [][]byte) RedisOutput {
	if len(args) < 1 {
		return wrongArgs("PFMERGE")
	}
	dstKey, srcKeys := args[0], args[1:]
	return store.Run(srv.loop, func() RedisOutput {
		var srcs []*container.Blob
		var out RedisOutput
		for _, key := range srcKeys {
			srv.store.Get(key, keyHashOf(key), func(v *store.View, found bool) {
				if !found {
					return
				}
				blob, err := v.ValueBlob()
				if err != nil {
					out = writeRedisError(store.WrongKind)
					return
				}
				srcs = append(srcs, blob)
			})
			if out.err != nil {
				return out
			}
		}
		found := false
		srv.store.Get(dstKey, keyHashOf(dstKey), func(v *store.View, has bool) {
			found = has
			if !has {
				return
			}
			blob, err := v.ValueBlob()
			if err != nil {
				out = writeRedisError(store.WrongKind)
				return
			}
			store.PFMerge(blob, srcs...)
		})
		if !found {
			entry := store.NewHLLEntry(append([]byte(nil), dstKey...), keyHashOf(dstKey))
			blob, _ := entry.ValueBlob()
			store.PFMerge(blob, srcs...)
			srv.store.Replace(entry)
			srv.digest.Observe(dstKey)
		}
		if out.err != nil {
			return out
		}
		return writeRedisString("OK")
	})
}
