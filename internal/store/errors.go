package store

import "redisd/internal/rerr"

var errWrongType = rerr.Argument("WRONGTYPE Operation against a key holding the wrong kind of value")
