package sink

import (
	"context"
	"time"

	"github.com/kilianp07/fieldcast/core/factory"
	"github.com/kilianp07/fieldcast/core/sink"
)

// init registers built-in sinks.
func init() {
	_ = sink.Register("discard", func(map[string]any) (sink.Sink, error) {
		return sink.Discard{}, nil
	})

	file := func(format string) factory.Factory[sink.Sink] {
		return func(conf map[string]any) (sink.Sink, error) {
			var c struct {
				Path string `json:"path"`
			}
			if err := factory.Decode(conf, &c); err != nil {
				return nil, err
			}
			return NewFileSink(c.Path, format)
		}
	}
	_ = sink.Register(FormatJSONL, file(FormatJSONL))
	_ = sink.Register(FormatCSV, file(FormatCSV))

	_ = sink.Register("jsonl-rotating", func(conf map[string]any) (sink.Sink, error) {
		var c RotatingConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRotatingSink(c)
	})

	_ = sink.Register("sqlite", func(conf map[string]any) (sink.Sink, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})

	_ = sink.Register("influx", func(conf map[string]any) (sink.Sink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	_ = sink.Register("mqtt", func(conf map[string]any) (sink.Sink, error) {
		var c MQTTConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewMQTTSink(c)
	})

	_ = sink.Register("object", func(conf map[string]any) (sink.Sink, error) {
		var c ObjectConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return NewObjectSink(ctx, c)
	})
}
