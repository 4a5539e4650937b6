package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/zoobzio/samplez"
)

type rootFlags struct {
	configPath string
	verbosity  int
}

type headerFlags struct {
	sentryTrace string
	traceparent string
	baggage     string
}

func (f *headerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sentryTrace, "sentry-trace", "", "Inbound sentry-trace header")
	cmd.Flags().StringVar(&f.traceparent, "traceparent", "", "Inbound traceparent header")
	cmd.Flags().StringVar(&f.baggage, "baggage", "", "Inbound baggage header")
}

func (f *headerFlags) header() http.Header {
	h := http.Header{}
	if f.sentryTrace != "" {
		h.Set(samplez.SentryTraceHeader, f.sentryTrace)
	}
	if f.traceparent != "" {
		h.Set(samplez.TraceparentHeader, f.traceparent)
	}
	if f.baggage != "" {
		h.Set(samplez.BaggageHeader, f.baggage)
	}
	return h
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "samplez",
		Short:         "Inspect trace propagation headers and sampling decisions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML options file")
	cmd.PersistentFlags().IntVarP(&flags.verbosity, "verbosity", "v", 0, "Log verbosity written to stderr")

	cmd.AddCommand(newDecodeCmd(flags), newNewCmd(flags), newSampleCmd(flags))
	return cmd
}

// tracer builds a tracer from the config file and logs to stderr.
func (f *rootFlags) tracer(cmd *cobra.Command) (*samplez.Tracer, error) {
	opts := samplez.Options{}
	if f.configPath != "" {
		loaded, err := samplez.LoadOptionsFile(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		opts = loaded
	}
	return samplez.New(
		samplez.WithOptions(opts),
		samplez.WithLogger(newLogger(cmd.ErrOrStderr(), f.verbosity)),
	), nil
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

type decodeOutput struct {
	DSC           map[string]string `json:"dsc,omitempty"`
	TraceID       string            `json:"trace_id"`
	ParentSpanID  string            `json:"parent_span_id,omitempty"`
	ParentSampled string            `json:"parent_sampled"`
	SampleRand    float64           `json:"sample_rand"`
	Continued     bool              `json:"continued"`
}

func newDecodeCmd(root *rootFlags) *cobra.Command {
	hf := &headerFlags{}
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode inbound propagation headers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tracer, err := root.tracer(cmd)
			if err != nil {
				return err
			}
			defer tracer.Close()

			ctx, _ := tracer.Extract(context.Background(), hf.header())
			pc, _ := samplez.PropagationFromContext(ctx)
			return writeJSON(cmd.OutOrStdout(), decodeOutput{
				TraceID:       pc.TraceID.String(),
				ParentSpanID:  pc.ParentSpanID.String(),
				ParentSampled: pc.ParentSampled.String(),
				SampleRand:    pc.SampleRand,
				Continued:     !pc.ParentSpanID.IsZero(),
				DSC:           pc.DynamicSamplingContext.Entries(),
			})
		},
	}
	hf.register(cmd)
	return cmd
}

type headersOutput struct {
	SentryTrace string `json:"sentry-trace"`
	Traceparent string `json:"traceparent"`
	Baggage     string `json:"baggage,omitempty"`
}

func newNewCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Print propagation headers for a new trace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tracer, err := root.tracer(cmd)
			if err != nil {
				return err
			}
			defer tracer.Close()

			ctx := samplez.ContextWithPropagation(context.Background(), samplez.NewPropagationContext())
			h := http.Header{}
			tracer.Inject(ctx, h)
			return writeJSON(cmd.OutOrStdout(), headersFromHTTP(h))
		},
	}
}

type sampleOutput struct {
	Headers    headersOutput `json:"headers"`
	Method     string        `json:"method"`
	Rate       *float64      `json:"rate,omitempty"`
	SampleRand float64       `json:"sample_rand"`
	Sampled    bool          `json:"sampled"`
	Profiled   bool          `json:"profiled"`
}

func newSampleCmd(root *rootFlags) *cobra.Command {
	hf := &headerFlags{}
	var name, op string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Start a transaction and print its sampling decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tracer, err := root.tracer(cmd)
			if err != nil {
				return err
			}
			defer tracer.Close()

			ctx, tc := tracer.Extract(context.Background(), hf.header())
			ctx, tx := tracer.StartTransaction(ctx, tc.WithName(name).WithOp(op), nil)
			h := http.Header{}
			tracer.Inject(ctx, h)

			out := sampleOutput{
				Headers:  headersFromHTTP(h),
				Method:   tx.Metadata.SamplingMethod.String(),
				Rate:     tx.Metadata.SamplingRate,
				Sampled:  tx.Sampled == samplez.SampledTrue,
				Profiled: tx.Profiled(),
			}
			if tx.Metadata.SampleRand != nil {
				out.SampleRand = *tx.Metadata.SampleRand
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	hf.register(cmd)
	cmd.Flags().StringVar(&name, "name", "cli", "Transaction name")
	cmd.Flags().StringVar(&op, "op", "cli.sample", "Transaction operation")
	return cmd
}

func headersFromHTTP(h http.Header) headersOutput {
	return headersOutput{
		SentryTrace: h.Get(samplez.SentryTraceHeader),
		Traceparent: h.Get(samplez.TraceparentHeader),
		Baggage:     h.Get(samplez.BaggageHeader),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
