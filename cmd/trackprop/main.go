package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trackprop/internal/config"
	"github.com/san-kum/trackprop/internal/geometry"
	"github.com/san-kum/trackprop/internal/navigator"
	"github.com/san-kum/trackprop/internal/propagator"
	"github.com/san-kum/trackprop/internal/stepper"
	"github.com/san-kum/trackprop/internal/storage"
	"github.com/san-kum/trackprop/internal/track"
	"github.com/san-kum/trackprop/internal/tui"
	"github.com/san-kum/trackprop/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string

	layout   string
	matName  string
	particle string
	momentum float64
	charge   float64
	phiDeg   float64
	thetaDeg float64
	bz       float64
	maxSteps int
	maxStep  float64
	maxPath  float64
	withCov  bool

	frameRate  int
	sweepFrom  float64
	sweepTo    float64
	sweepCount int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trackprop",
		Short: "charged-particle trajectory propagation lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".trackprop", "data directory")

	propagateCmd := &cobra.Command{
		Use:   "propagate",
		Short: "propagate a particle and store the run",
		RunE:  runPropagate,
	}
	addRunFlags(propagateCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "propagate over a momentum scan",
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0.1, "lowest momentum [GeV]")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 10.0, "highest momentum [GeV]")
	sweepCmd.Flags().IntVar(&sweepCount, "count", 10, "number of scan points")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "propagate with live playback",
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	presetsCmd := &cobra.Command{
		Use:   "presets [layout]",
		Short: "list available presets for a layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for layout: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(propagateCmd, sweepCmd, listCmd, plotCmd, exportCmd, liveCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&layout, "layout", "vacuum", "geometry layout")
	cmd.Flags().StringVar(&matName, "material", "", "volume material")
	cmd.Flags().StringVar(&particle, "particle", "muon", "particle kind")
	cmd.Flags().Float64Var(&momentum, "p", 1.0, "momentum [GeV]")
	cmd.Flags().Float64Var(&charge, "charge", -1, "charge [e]")
	cmd.Flags().Float64Var(&phiDeg, "phi", 0, "azimuth [deg]")
	cmd.Flags().Float64Var(&thetaDeg, "theta", 90, "polar angle [deg]")
	cmd.Flags().Float64Var(&bz, "bz", 0, "field z component [T]")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 1000, "step ceiling")
	cmd.Flags().Float64Var(&maxStep, "max-step-size", 1000, "step size ceiling [mm]")
	cmd.Flags().Float64Var(&maxPath, "max-path", 0, "path length limit [mm], 0 = unlimited")
	cmd.Flags().BoolVar(&withCov, "cov", false, "transport covariance")
}

// buildConfig merges preset, config file and CLI flags, flags winning.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(layout, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(layout))
		}
		*cfg = *p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("layout") || preset == "" && configFile == "" {
		cfg.Geometry.Layout = layout
	}
	if cmd.Flags().Changed("material") {
		cfg.Geometry.Material = matName
	}
	if cmd.Flags().Changed("particle") {
		cfg.Particle.Kind = particle
	}
	if cmd.Flags().Changed("p") {
		cfg.Particle.P = momentum
	}
	if cmd.Flags().Changed("charge") {
		cfg.Particle.Charge = charge
	}
	if cmd.Flags().Changed("phi") {
		cfg.Particle.PhiDeg = phiDeg
	}
	if cmd.Flags().Changed("theta") {
		cfg.Particle.ThetaDeg = thetaDeg
	}
	if cmd.Flags().Changed("bz") {
		cfg.Field.Bz = bz
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.Propagation.MaxSteps = maxSteps
	}
	if cmd.Flags().Changed("max-step-size") {
		cfg.Propagation.MaxStepSize = maxStep
	}
	if cmd.Flags().Changed("max-path") {
		cfg.Propagation.MaxPath = maxPath
	}
	if cmd.Flags().Changed("cov") {
		cfg.Propagation.Covariance = withCov
	}
	if cfg.Propagation.MaxSteps <= 0 {
		cfg.Propagation.MaxSteps = 1000
	}
	if cfg.Propagation.MaxStepSize <= 0 {
		cfg.Propagation.MaxStepSize = 1000
	}
	if cfg.Propagation.Tolerance <= 0 {
		cfg.Propagation.Tolerance = config.DefaultTolerance
	}
	return cfg, nil
}

// seedCovariance is the diagonal start covariance used when transport
// is requested without measured input.
func seedCovariance() *mat.SymDense {
	c := mat.NewSymDense(track.BoundSize, nil)
	c.SetSym(track.BoundLoc0, track.BoundLoc0, 0.01)
	c.SetSym(track.BoundLoc1, track.BoundLoc1, 0.01)
	c.SetSym(track.BoundPhi, track.BoundPhi, 1e-4)
	c.SetSym(track.BoundTheta, track.BoundTheta, 1e-4)
	c.SetSym(track.BoundQOverP, track.BoundQOverP, 1e-4)
	c.SetSym(track.BoundTime, track.BoundTime, 0.01)
	return c
}

type runOutput struct {
	result    propagator.Result
	collector *propagator.StepCollector
	arena     *geometry.TrackingGeometry
}

func execute(cfg *config.Config) (*runOutput, error) {
	arena, err := cfg.Arena()
	if err != nil {
		return nil, err
	}
	mass, err := cfg.Particle.Mass()
	if err != nil {
		return nil, err
	}
	dir, err := cfg.Direction()
	if err != nil {
		return nil, err
	}
	start, err := cfg.Start()
	if err != nil {
		return nil, err
	}
	if cfg.Propagation.Covariance {
		start.Cov = seedCovariance()
	}

	st := stepper.New(cfg.BField(),
		stepper.WithExtensions(stepper.NewVacuumExtension, stepper.NewDenseExtension),
		stepper.WithAuctioneer(stepper.HighestBidAuctioneer{}))
	nav := navigator.New(arena)
	prop := propagator.New(st, nav)

	collector := &propagator.StepCollector{}
	opts := propagator.Options{
		Stepping: stepper.Options{
			Tolerance:     cfg.Propagation.Tolerance,
			MaxStepTrials: 10000,
			Mass:          mass,
		},
		Direction:     dir,
		MaxSteps:      cfg.Propagation.MaxSteps,
		MaxStepSize:   cfg.Propagation.MaxStepSize,
		MaxPathLength: cfg.Propagation.MaxPath,
		Actions:       []propagator.Action{collector},
	}

	result, err := prop.Propagate(start, opts)
	if err != nil {
		return nil, err
	}
	return &runOutput{result: result, collector: collector, arena: arena}, nil
}

func metadata(cfg *config.Config, out *runOutput) storage.RunMetadata {
	return storage.RunMetadata{
		Layout:    cfg.Geometry.Layout,
		Particle:  cfg.Particle.Kind,
		P:         cfg.Particle.P,
		Charge:    cfg.Particle.Charge,
		Bz:        cfg.Field.Bz,
		Direction: cfg.Propagation.Direction,
		Reason:    out.result.Reason.String(),
		Metrics: map[string]float64{
			"path":    out.result.Path,
			"steps":   float64(out.result.Steps),
			"final_p": out.result.End.P,
			"final_x": out.result.End.Pos.X,
			"final_y": out.result.End.Pos.Y,
			"final_z": out.result.End.Pos.Z,
		},
	}
}

func runPropagate(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("propagating %s (p=%.3f GeV) through %s...\n",
		cfg.Particle.Kind, cfg.Particle.P, cfg.Geometry.Layout)
	startTime := time.Now()

	out, err := execute(cfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(startTime)

	meta := metadata(cfg, out)
	runID, err := st.Save(meta, out.collector.Records)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", out.result.Steps)
	fmt.Printf("stopped: %s\n", out.result.Reason)
	fmt.Println("\nmetrics:")
	for name, val := range meta.Metrics {
		fmt.Printf("  %s: %.6f\n", name, val)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if sweepCount < 2 {
		return fmt.Errorf("sweep needs at least two points")
	}

	fmt.Printf("momentum sweep %s: %.2f to %.2f GeV, %d points\n\n",
		cfg.Geometry.Layout, sweepFrom, sweepTo, sweepCount)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "P[GeV]\tSTEPS\tPATH[mm]\tFINAL_P[GeV]\tDEFLECT_Y[mm]\tREASON")

	deflections := make([]float64, 0, sweepCount)
	for i := 0; i < sweepCount; i++ {
		p := sweepFrom + float64(i)*(sweepTo-sweepFrom)/float64(sweepCount-1)
		cfg.Particle.P = p

		out, err := execute(cfg)
		if err != nil {
			fmt.Fprintf(w, "%.3f\terror: %v\n", p, err)
			continue
		}
		deflections = append(deflections, out.result.End.Pos.Y)
		fmt.Fprintf(w, "%.3f\t%d\t%.1f\t%.4f\t%.2f\t%s\n",
			p, out.result.Steps, out.result.Path,
			out.result.End.P, out.result.End.Pos.Y, out.result.Reason)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(deflections) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(deflections,
			asciigraph.Height(10),
			asciigraph.Width(70),
			asciigraph.Caption("final y deflection [mm] over scan"),
		))
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLAYOUT\tPARTICLE\tP[GeV]\tBZ[T]\tTIME\tREASON")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%.1f\t%s\t%s\n",
			run.ID,
			run.Layout,
			run.Particle,
			run.P,
			run.Bz,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Reason,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rows, err := st.LoadSteps(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("layout: %s, particle: %s, p=%.3f GeV\n", meta.Layout, meta.Particle, meta.P)
	fmt.Printf("samples: %d\n\n", len(rows))

	records := recordsFromRows(rows)
	fmt.Print(viz.TrajectoryPlots(records, 70, 10))
	fmt.Println()
	fmt.Print(viz.TopView(records, nil, 70, 16))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rows, err := st.LoadSteps(runID)
	if err != nil {
		return err
	}
	return storage.ExportJSONStdout(*meta, recordsFromRows(rows))
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	out, err := execute(cfg)
	if err != nil {
		return err
	}

	var layerX []float64
	for _, vol := range out.arena.Volumes {
		for _, l := range vol.Layers {
			layerX = append(layerX, l.Surface.Center().X)
		}
	}

	title := fmt.Sprintf("%s  %s p=%.2f GeV", cfg.Geometry.Layout, cfg.Particle.Kind, cfg.Particle.P)
	m := tui.NewModel(title, out.collector.Records, layerX, frameRate)
	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

// recordsFromRows rebuilds step records from the CSV column order
// written by the store.
func recordsFromRows(rows [][]float64) []propagator.StepRecord {
	records := make([]propagator.StepRecord, 0, len(rows))
	for _, row := range rows {
		if len(row) < 10 {
			continue
		}
		rec := propagator.StepRecord{Path: row[0], T: row[4], P: row[8], StepSize: row[9]}
		rec.Pos.X, rec.Pos.Y, rec.Pos.Z = row[1], row[2], row[3]
		rec.Dir.X, rec.Dir.Y, rec.Dir.Z = row[5], row[6], row[7]
		records = append(records, rec)
	}
	return records
}
