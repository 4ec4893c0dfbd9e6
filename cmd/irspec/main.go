// Command irspec inspects impulse responses for the convolution reverb and
// optionally renders audio through it.
//
// Usage:
//
//	irspec [flags] ir.wav [ir.wav ...]
//
// For every IR it prints the content hash, the partition scheme (marked
// "truncated" when it cannot cover the whole response), the processing
// latency, the decay times and pre-delay, the analysis used for auto width
// and whether the spectra were found in the cache. Missing spectra are
// computed and stored.
//
// Examples:
//
//	irspec hall.wav plate.wav
//	irspec -strategy low-latency -cache-dir ~/.cache/irspec hall.wav
//	irspec -render dry.wav -out wet.wav -mix 0.3 -auto-width hall.wav
//	irspec -sweep sweep.wav -sweep-duration 10
//	irspec -capture recording.wav -ir-out hall.wav -ir-length 3
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/cwbudde/algo-vecmath"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reverb/dsp/conv"
	"github.com/cwbudde/algo-reverb/dsp/impulse"
	"github.com/cwbudde/algo-reverb/dsp/ircache"
	"github.com/cwbudde/algo-reverb/dsp/reverb"
	"github.com/cwbudde/algo-reverb/measure/ir"
	"github.com/cwbudde/algo-reverb/measure/sweep"
)

// renderPeak is the peak level rendered output is normalized to when it
// would clip.
const renderPeak = 0.99

type options struct {
	cacheDir  string
	strategy  conv.Strategy
	rate      float64
	render    string
	out       string
	mix       float64
	width     float64
	crossFeed float64
	autoWidth bool

	sweep    sweep.LogSweep
	irOut    string
	irLength float64
}

func main() {
	cacheDir := flag.String("cache-dir", "", "directory for .irspec files (default: next to each IR)")
	strategy := flag.String("strategy", "optimal", "partition strategy: optimal, low-latency, efficient")
	rate := flag.Float64("rate", 0, "resample IRs to this rate before analysis (0 keeps the file rate)")
	render := flag.String("render", "", "dry WAV file to render through the first IR")
	out := flag.String("out", "wet.wav", "output WAV file for -render")
	mix := flag.Float64("mix", reverb.DefaultMix, "dry/wet mix for -render, 0..1")
	width := flag.Float64("width", reverb.DefaultWidth, "stereo width for -render, 0..2")
	crossFeed := flag.Float64("cross-feed", reverb.DefaultCrossFeed, "cross-feed amount for -render, 0..1")
	autoWidth := flag.Bool("auto-width", false, "derive the width from the IR correlation for -render")
	sweepOut := flag.String("sweep", "", "write a log sweep excitation to this WAV file and exit")
	capture := flag.String("capture", "", "deconvolve a sweep recording (1, 2 or 4 channels) into the IR file given by -ir-out")
	irOut := flag.String("ir-out", "ir.wav", "output WAV file for -capture")
	sweepStart := flag.Float64("sweep-start", 20, "sweep start frequency in Hz")
	sweepEnd := flag.Float64("sweep-end", 20000, "sweep end frequency in Hz")
	sweepDuration := flag.Float64("sweep-duration", 5, "sweep duration in seconds")
	sweepRate := flag.Float64("sweep-rate", 48000, "sample rate of a generated sweep in Hz")
	irLength := flag.Float64("ir-length", 0, "captured IR length in seconds (0 keeps the recording length)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: irspec [flags] ir.wav [ir.wav ...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints hash, partition scheme, latency, analysis and cache status of impulse responses.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  irspec hall.wav plate.wav\n")
		fmt.Fprintf(os.Stderr, "  irspec -strategy low-latency -cache-dir /tmp/irspec hall.wav\n")
		fmt.Fprintf(os.Stderr, "  irspec -render dry.wav -out wet.wav -mix 0.3 -auto-width hall.wav\n")
		fmt.Fprintf(os.Stderr, "  irspec -sweep sweep.wav -sweep-duration 10\n")
		fmt.Fprintf(os.Stderr, "  irspec -capture recording.wav -ir-out hall.wav -ir-length 3\n")
	}
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)

	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	s, err := conv.ParseStrategy(*strategy)
	if err != nil {
		log.WithError(err).Fatal("Invalid strategy")
	}

	opts := options{
		cacheDir:  *cacheDir,
		strategy:  s,
		rate:      *rate,
		render:    *render,
		out:       *out,
		mix:       *mix,
		width:     *width,
		crossFeed: *crossFeed,
		autoWidth: *autoWidth,
		irOut:     *irOut,
		irLength:  *irLength,
	}

	opts.sweep = sweep.LogSweep{
		StartFreq:  *sweepStart,
		EndFreq:    *sweepEnd,
		Duration:   *sweepDuration,
		SampleRate: *sweepRate,
	}

	if *sweepOut != "" {
		err = writeSweep(log, *sweepOut, opts.sweep)
		if err != nil {
			log.WithError(err).Fatal("Writing sweep failed")
		}

		return
	}

	paths := flag.Args()

	if *capture != "" {
		err = captureIR(log, *capture, opts)
		if err != nil {
			log.WithError(err).Fatal("Capture failed")
		}

		paths = append([]string{opts.irOut}, paths...)
	}

	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cacheOpts := []ircache.Option{ircache.WithLogger(log)}
	if opts.cacheDir != "" {
		cacheOpts = append(cacheOpts, ircache.WithCacheDir(opts.cacheDir))
	}

	cache, err := ircache.New(cacheOpts...)
	if err != nil {
		log.WithError(err).Fatal("Creating cache")
	}

	if !inspect(log, cache, paths, opts) {
		os.Exit(1)
	}

	if opts.render != "" {
		err = renderFile(log, cache, paths[0], opts)
		if err != nil {
			log.WithError(err).Fatal("Render failed")
		}
	}
}

// loadIR loads path as a true-stereo response, resampled to rate when rate
// is positive.
func loadIR(path string, rate float64) (*impulse.Response, impulse.TrueStereo, error) {
	resp, err := impulse.Load(path)
	if err != nil {
		return nil, impulse.TrueStereo{}, err
	}

	if rate > 0 && rate != resp.SampleRate {
		resp, err = resp.Resample(rate)
		if err != nil {
			return nil, impulse.TrueStereo{}, err
		}
	}

	ts, err := impulse.NewTrueStereo(resp)
	if err != nil {
		return nil, impulse.TrueStereo{}, fmt.Errorf("%s: %w", path, err)
	}

	return resp, ts, nil
}

// inspect prints one table row per IR and reports whether all files could be
// processed.
func inspect(log *logrus.Logger, cache *ircache.Cache, paths []string, opts options) bool {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "File\tCh\tRate\tLength\tHash\tScheme\tLatency\tRT60 [s]\tT30 [s]\tPre [ms]\tCorr\tWidth\tCache\n"); err != nil {
		log.WithError(err).Error("Failed to write output header")
		return false
	}

	ok := true

	for _, path := range paths {
		row, err := inspectFile(cache, path, opts)
		if err != nil {
			log.WithFields(logrus.Fields{
				"function": "inspect",
				"file":     path,
			}).WithError(err).Error("Skipping impulse response")

			ok = false

			continue
		}

		if _, err := fmt.Fprintln(tw, row); err != nil {
			log.WithError(err).Error("Failed to write output row")
			return false
		}
	}

	if err := tw.Flush(); err != nil {
		log.WithError(err).Error("Failed to flush output")
		return false
	}

	return ok
}

func inspectFile(cache *ircache.Cache, path string, opts options) (string, error) {
	hash, err := ircache.ComputeHash(path)
	if err != nil {
		return "", err
	}

	resp, ts, err := loadIR(path, opts.rate)
	if err != nil {
		return "", err
	}

	chars, err := ir.NewAnalyzer(ts.SampleRate).Characterize(ts.LL, ts.RR)
	if err != nil {
		return "", fmt.Errorf("analyzing %s: %w", path, err)
	}

	status, scheme, err := cacheSpectrum(cache, path, resp, ts, opts.strategy)
	if err != nil {
		return "", err
	}

	layout := scheme.String()
	if scheme.Length < ts.Len() {
		layout += " (truncated)"
	}

	return fmt.Sprintf("%s\t%d\t%.0f\t%d\t%s\t%s\t%d\t%.3f\t%.3f\t%.2f\t%.3f\t%.2f\t%s",
		path,
		resp.Channels(),
		ts.SampleRate,
		ts.Len(),
		hash.Prefix(),
		layout,
		scheme.MinLatency,
		chars.RT60,
		chars.T30,
		1000*chars.PreDelay,
		chars.Correlation,
		chars.SuggestedWidth,
		status,
	), nil
}

// cacheSpectrum looks up the LL leg spectra for path and computes and stores
// them on a miss or when the cached partitioning does not match strategy.
func cacheSpectrum(cache *ircache.Cache, path string, resp *impulse.Response, ts impulse.TrueStereo, strategy conv.Strategy) (string, conv.PartitionScheme, error) {
	scheme := conv.NewScheme(strategy, ts.Len())

	cached, ok, err := cache.Get(path)
	if err != nil {
		return "", scheme, err
	}

	if ok && cached.SampleRate == ts.SampleRate && slices.Equal(cached.Sizes(), scheme.Sizes) {
		return "hit", scheme, nil
	}

	c, err := conv.NewNonUniformConvolver(ts.LL, scheme)
	if err != nil {
		return "", scheme, err
	}

	err = cache.Put(path, ircache.NewCachedSpectrum(c, ts.SampleRate, resp.Channels(), ircache.Hash{}))
	if err != nil {
		return "", scheme, err
	}

	if ok {
		return "rebuilt", scheme, nil
	}

	return "stored", scheme, nil
}

// processor is the common surface of the plain and adaptive true-stereo
// convolvers.
type processor interface {
	ProcessTo(outL, outR, inL, inR []float64) int
	Latency() int
}

// renderFile convolves the dry file with the IR at irPath and writes the
// latency-compensated result including the full reverb tail.
func renderFile(log *logrus.Logger, cache *ircache.Cache, irPath string, opts options) error {
	dry, err := impulse.Load(opts.render)
	if err != nil {
		return err
	}

	if dry.Channels() > 2 {
		return fmt.Errorf("%s: %w: %d channels", opts.render, impulse.ErrChannelLayout, dry.Channels())
	}

	_, ts, err := loadIR(irPath, dry.SampleRate)
	if err != nil {
		return err
	}

	rvOpts := []reverb.Option{
		reverb.WithStrategy(opts.strategy),
		reverb.WithCache(cache),
		reverb.WithMix(opts.mix),
		reverb.WithWidth(opts.width),
		reverb.WithCrossFeed(opts.crossFeed),
		reverb.WithAutoWidth(opts.autoWidth),
		reverb.WithLogger(log),
	}

	var p processor
	if opts.autoWidth {
		p, err = reverb.NewAdaptiveTrueStereoConvolver(ts, rvOpts...)
	} else {
		p, err = reverb.NewTrueStereoConvolver(ts, rvOpts...)
	}

	if err != nil {
		return err
	}

	latency := p.Latency()
	n := dry.Len() + ts.Len() - 1 + latency

	inL := make([]float64, n)
	inR := make([]float64, n)
	copy(inL, dry.Channel(0))
	copy(inR, dry.Channel(min(1, dry.Channels()-1)))

	outL := make([]float64, n)
	outR := make([]float64, n)
	p.ProcessTo(outL, outR, inL, inR)

	outL, outR = outL[latency:], outR[latency:]

	normalize(log, outL, outR)

	err = impulse.SaveWAV(opts.out, [][]float64{outL, outR}, int(dry.SampleRate))
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"function": "renderFile",
		"ir":       irPath,
		"input":    opts.render,
		"output":   opts.out,
		"frames":   len(outL),
		"latency":  latency,
	}).Info("Rendered")

	return nil
}

// writeSweep stores the excitation signal as a mono WAV file.
func writeSweep(log *logrus.Logger, path string, s sweep.LogSweep) error {
	x, err := s.Generate()
	if err != nil {
		return err
	}

	// Leave headroom for the 16-bit encoder.
	vecmath.ScaleBlockInPlace(x, renderPeak)

	err = impulse.SaveWAV(path, [][]float64{x}, int(s.SampleRate))
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"function": "writeSweep",
		"file":     path,
		"samples":  len(x),
		"start":    s.StartFreq,
		"end":      s.EndFreq,
	}).Info("Wrote sweep")

	return nil
}

// captureIR deconvolves the sweep recording at path and writes the measured
// response to opts.irOut. The sweep is taken at the recording's sample rate.
func captureIR(log *logrus.Logger, path string, opts options) error {
	rec, err := impulse.Load(path)
	if err != nil {
		return err
	}

	s := opts.sweep
	s.SampleRate = rec.SampleRate

	resp, err := s.Capture(rec.Samples, int(opts.irLength*rec.SampleRate))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	normalize(log, resp.Samples...)

	err = impulse.SaveWAV(opts.irOut, resp.Samples, int(resp.SampleRate))
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"function": "captureIR",
		"input":    path,
		"output":   opts.irOut,
		"channels": resp.Channels(),
		"samples":  resp.Len(),
	}).Info("Captured impulse response")

	return nil
}

// normalize scales all channels by one gain so that the loudest sample sits
// at renderPeak, if it would otherwise clip.
func normalize(log *logrus.Logger, channels ...[]float64) {
	var peak float64
	for _, ch := range channels {
		peak = max(peak, vecmath.MaxAbs(ch))
	}

	if peak <= renderPeak {
		return
	}

	gain := renderPeak / peak
	for _, ch := range channels {
		vecmath.ScaleBlockInPlace(ch, gain)
	}

	log.WithFields(logrus.Fields{
		"function": "normalize",
		"peak":     peak,
		"gain":     gain,
	}).Info("Normalized output")
}
