package live

// Registry is the single source of truth for where a session currently is:
// which connection speaks for it and which room seats it. It has no locking
// of its own; the owning Server serializes all access.
type Registry struct {
	sessionConn map[string]Transport
	sessionRoom map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessionConn: make(map[string]Transport),
		sessionRoom: make(map[string]string),
	}
}

// BindConn makes t the live connection for session and returns the
// superseded connection, if any. A session speaks through at most one
// connection; the newest wins.
func (r *Registry) BindConn(session string, t Transport) Transport {
	old := r.sessionConn[session]
	r.sessionConn[session] = t
	if old == t {
		return nil
	}
	return old
}

// ReleaseConn drops the session→connection binding, but only when t is still
// the live connection. A close event from a superseded connection must not
// evict the session.
func (r *Registry) ReleaseConn(session string, t Transport) bool {
	if r.sessionConn[session] != t {
		return false
	}
	delete(r.sessionConn, session)
	return true
}

// Conn returns the live connection for session, or nil.
func (r *Registry) Conn(session string) Transport { return r.sessionConn[session] }

// RoomOf returns the room code the session is seated in, or "".
func (r *Registry) RoomOf(session string) string { return r.sessionRoom[session] }

// SetRoom seats the session in a room.
func (r *Registry) SetRoom(session, code string) { r.sessionRoom[session] = code }

// ClearRoom removes the session's seat.
func (r *Registry) ClearRoom(session string) { delete(r.sessionRoom, session) }
