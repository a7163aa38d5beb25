package daytime

// Clock is the read-only time view the resolvers consume. SystemTime is the
// production implementation; tests substitute a fixed clock.
type Clock interface {
	Now() Time
	Uptime() uint32
}
