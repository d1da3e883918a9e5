/*
Package config reads event bus settings from YAML or JSON.

Config wraps a map[string]any and returns the supplied default whenever a key
is missing or holds a value of the wrong type:

	bus, err := config.LoadSection("app.yaml", "eventbus")
	if err != nil {
	    log.Fatal(err)
	}
	hierarchy := bus.Bool("event_type_hierarchy", true)
	slice := bus.Duration("main_time_slice", 10*time.Millisecond)

Files are YAML or JSON, chosen by extension, and may reference environment
variables as ${NAME}.

Durations accept Go duration strings ("15ms", "1s") or bare numbers, which
are read as milliseconds. Unknown reports keys a consumer does not recognise,
so typos can be rejected instead of silently ignored.

Config is safe for concurrent reads. The underlying map is never modified.
*/
package config
