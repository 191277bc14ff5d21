package store

// SetStringResult reports the outcome of SetString, Redis' SET command
// semantics, following the same conditional-insert rules as InsertIf.
type SetStringResult struct {
	PreviousValue    []byte
	HasPreviousValue bool
	Applied          bool
}

// SetString implements Redis' SET key value [NX|XX] [GET] [KEEPTTL]
// [EX|PX|EXAT|PXAT ttl]. It carries its own copy of InsertIf's
// conditional-insert state machine (it calls neither InsertIf nor Replace),
// extended with the GET and KEEPTTL options real Redis SET supports but the
// bare InsertIf contract doesn't need.
//
//   - ttlMs > 0 sets a new expiration ttlMs from now.
//   - ttlMs == 0 and keepTTL==false clears any existing expiration.
//   - keepTTL==true preserves whatever expiration (if any) the prior entry
//     had, ignoring ttlMs.
func (s *Store) SetString(key []byte, keyHash uint64, value []byte, ttlMs int64, nx, xx, keepTTL, get bool) (SetStringResult, error) {
	if nx && xx {
		return SetStringResult{}, InvalidPredicate
	}

	prior := s.primary.Lookup(key, keyHash)
	present := prior != nil

	var result SetStringResult
	if get && present {
		if blob, err := prior.ValueBlob(); err == nil {
			result.PreviousValue = append([]byte(nil), blob.Bytes()...)
			result.HasPreviousValue = true
		}
	}

	var proceed bool
	switch {
	case nx && !xx:
		proceed = !present
	case xx && !nx:
		proceed = present
	default:
		proceed = true
	}
	if !proceed {
		observeOp("set", false)
		return result, nil
	}

	priorExpiry := int64(Never)
	if present {
		priorExpiry = prior.expiry
	}

	entry := NewBytesEntry(s.internKey(key), keyHash, append([]byte(nil), value...))
	switch {
	case keepTTL:
		entry.expiry = priorExpiry
	case ttlMs > 0:
		entry.expiry = s.clock.NowNanos() + ttlMs*1_000_000
	default:
		entry.expiry = Never
	}

	if present {
		s.removeEntry(prior)
	}
	s.link(entry)
	if entry.expiry != Never {
		if s.expiry.Insert(entry) {
			s.rearmTimer()
		}
	}
	s.maybeRehash()

	result.Applied = true
	observeOp("set", true)
	return result, nil
}
