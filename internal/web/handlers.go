package web

import (
	"image"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/signalnine/qrscale/internal/config"
	"github.com/signalnine/qrscale/internal/dataset"
	"github.com/signalnine/qrscale/internal/decoder"
	"github.com/signalnine/qrscale/internal/evaluate"
	"github.com/signalnine/qrscale/internal/result"
	"github.com/signalnine/qrscale/internal/runner"
	"github.com/signalnine/qrscale/internal/scale"
	"github.com/signalnine/qrscale/internal/stats"
)

type decoderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type datasetInfo struct {
	Name   string `json:"name"`
	Images int    `json:"images"`
}

func (s *Server) decoderInfos() []decoderInfo {
	infos := make([]decoderInfo, 0, len(s.opts.Decoders))
	for _, name := range s.opts.Decoders {
		info := decoderInfo{Name: name, Available: true}
		d, err := s.opts.Factory(name)
		if err != nil {
			info.Available = false
			info.Reason = err.Error()
		} else {
			decoder.Close(d)
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *Server) datasetInfos() ([]datasetInfo, error) {
	names, err := dataset.List(s.opts.DatasetsDir)
	if err != nil {
		return nil, err
	}
	infos := make([]datasetInfo, 0, len(names))
	for _, n := range names {
		infos = append(infos, datasetInfo{Name: n, Images: dataset.CountImages(filepath.Join(s.opts.DatasetsDir, n))})
	}
	return infos, nil
}

func (s *Server) indexHandler(c *gin.Context) {
	datasets, err := s.datasetInfos()
	if err != nil {
		log.Warn().Err(err).Msg("listing datasets")
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Datasets": datasets,
		"Decoders": s.decoderInfos(),
		"Jobs":     s.jobs.list(),
	})
}

func (s *Server) listDecodersHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.decoderInfos())
}

func (s *Server) listDatasetsHandler(c *gin.Context) {
	infos, err := s.datasetInfos()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, infos)
}

func (s *Server) uploadDatasetHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" with a .zip archive is required"})
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".zip") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .zip archives are accepted"})
		return
	}

	name := datasetNameFromArchive(fh.Filename)
	target := filepath.Join(s.opts.DatasetsDir, name)
	if dataset.HasLayout(target) {
		c.JSON(http.StatusOK, gin.H{"name": name, "images": dataset.CountImages(target), "reused": true})
		return
	}

	scratch := filepath.Join(s.opts.DatasetsDir, dataset.UploadsDir, uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.RemoveAll(scratch)

	archive := filepath.Join(scratch, "upload.zip")
	if err := c.SaveUploadedFile(fh, archive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	extracted := filepath.Join(scratch, "data")
	if err := extractZip(archive, extracted); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	root, err := findDatasetRoot(extracted)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ds, err := dataset.Load(root)
	if err != nil {
		respondDatasetError(c, err)
		return
	}
	if err := os.Rename(root, target); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("dataset", name).Int("images", ds.Len()).Msg("dataset uploaded")
	c.JSON(http.StatusCreated, gin.H{"name": name, "images": ds.Len(), "reused": false})
}

func respondDatasetError(c *gin.Context, err error) {
	var derr *dataset.Error
	if errors.As(err, &derr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset", "problems": derr.Problems})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) datasetImageHandler(c *gin.Context) {
	name := c.Param("name")
	file := c.Query("path")
	if !dataset.ValidName(name) || file == "" || file != filepath.Base(file) || file == ".." || !dataset.IsImageFile(file) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset or image path"})
		return
	}
	path := filepath.Join(s.opts.DatasetsDir, name, dataset.ImagesDir, file)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.File(path)
}

type jobRequest struct {
	Dataset    string    `json:"dataset" binding:"required"`
	Decoder    string    `json:"decoder" binding:"required"`
	Scales     []float64 `json:"scales"`
	Iterations int       `json:"iterations"`
}

func (s *Server) createJobHandler(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	levels := s.opts.Scales
	if len(req.Scales) > 0 {
		levels = req.Scales
	}
	levels, err := scale.Normalize(levels)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	iterations := req.Iterations
	if iterations == 0 {
		iterations = max(s.opts.Iterations, 1)
	}
	if iterations < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "iterations must be at least 1"})
		return
	}

	d, err := s.opts.Factory(req.Decoder)
	if err != nil {
		var missing *decoder.DependencyMissingError
		if errors.As(err, &missing) {
			c.JSON(http.StatusFailedDependency, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	decoder.Close(d)

	ds, err := dataset.Open(s.opts.DatasetsDir, req.Dataset)
	if err != nil {
		respondDatasetError(c, err)
		return
	}

	job := s.jobs.create(Job{Dataset: ds.Name, Decoder: req.Decoder, Scales: levels, Iterations: iterations})
	s.wg.Add(1)
	go s.runJob(job.ID, ds)
	c.JSON(http.StatusAccepted, gin.H{"id": job.ID})
}

func (s *Server) runJob(id string, ds *dataset.Dataset) {
	defer s.wg.Done()
	job, _ := s.jobs.get(id)
	s.jobs.update(id, func(j *Job) {
		j.Status = JobRunning
		j.Progress = runner.Progress{Decoder: j.Decoder, Total: ds.Len()}
	})

	sum, err := runner.Run(s.ctx, &runner.RunOpts{
		Dataset:          ds,
		Decoders:         []string{job.Decoder},
		Factory:          s.opts.Factory,
		Scales:           job.Scales,
		Iterations:       job.Iterations,
		Parallel:         1,
		OutputsDir:       s.opts.OutputsDir,
		BinStepPx:        s.opts.BinStepPx,
		ParetoMinSamples: s.opts.ParetoMinSamples,
		OnMissingDecoder: config.OnMissingAbort,
		Progress: func(p runner.Progress) {
			s.jobs.update(id, func(j *Job) { j.Progress = p })
		},
	})

	now := time.Now().UTC()
	s.jobs.update(id, func(j *Job) {
		j.Finished = &now
		if sum != nil {
			j.RunDir = sum.RunDir
		}
		if err != nil {
			j.Status = JobFailed
			j.Error = err.Error()
			return
		}
		j.Status = JobDone
		j.Stats = sum.Stats[j.Decoder]
	})
	if err != nil {
		log.Error().Err(err).Str("job", id).Msg("job failed")
	}
}

func (s *Server) listJobsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.jobs.list())
}

func (s *Server) getJobHandler(c *gin.Context) {
	job, ok := s.jobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	resp := gin.H{"job": job}
	if job.Status == JobDone {
		var attempts, matched int
		for _, st := range job.Stats {
			attempts += st.SampleCount
			matched += st.MatchedCount
		}
		summary := gin.H{"attempts": attempts, "matched": matched}
		if attempts > 0 {
			summary["success_rate"] = float64(matched) / float64(attempts)
		}
		resp["summary"] = summary
		resp["artifacts"] = s.artifactURLs(job)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) artifactURLs(job Job) gin.H {
	rel, err := filepath.Rel(s.absOutputs(), result.DecoderDir(job.RunDir, job.Decoder))
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	base := "/outputs/" + filepath.ToSlash(rel) + "/"
	return gin.H{
		"accuracy_chart": base + result.AccuracyPlot,
		"time_chart":     base + result.TimePlot,
		"results":        base + result.ResultsFile,
		"stats":          base + result.StatsFile,
	}
}

func (s *Server) jobStatsHandler(c *gin.Context) {
	job, ok := s.jobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Status != JobDone {
		c.JSON(http.StatusConflict, gin.H{"error": "job is " + string(job.Status)})
		return
	}
	c.JSON(http.StatusOK, job.Stats)
}

type sampleView struct {
	SampleID   string  `json:"sample_id"`
	Scale      float64 `json:"scale"`
	Matched    bool    `json:"matched"`
	Found      bool    `json:"found"`
	RawPayload *string `json:"raw_payload,omitempty"`
	Expected   string  `json:"expected"`
	ElapsedMs  float64 `json:"elapsed_ms"`
	ModulePx   float64 `json:"module_px,omitempty"`
	ImageURL   string  `json:"image_url"`
}

// sampleFilter narrows a job's results for drilldown. NaN scale and a zero
// bin match everything.
type sampleFilter struct {
	scale   float64
	bin     int
	outcome string
}

func parseSampleFilter(c *gin.Context) (sampleFilter, error) {
	f := sampleFilter{scale: math.NaN(), outcome: c.DefaultQuery("outcome", "all")}
	if v := c.Query("scale"); v != "" {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, errors.New("scale must be a number")
		}
		f.scale = x
	}
	if v := c.Query("bin"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil || b < 1 {
			return f, errors.New("bin must be a positive integer")
		}
		f.bin = b
	}
	switch f.outcome {
	case "all", "failed", "correct":
	default:
		return f, errors.New("outcome must be all, failed or correct")
	}
	return f, nil
}

func (s *Server) filterSamples(job Job, f sampleFilter) ([]sampleView, error) {
	results, err := result.ReadResults(result.DecoderDir(job.RunDir, job.Decoder))
	if err != nil {
		return nil, err
	}
	views := []sampleView{}
	for _, r := range results {
		if !math.IsNaN(f.scale) && math.Abs(r.Scale-f.scale) > 1e-9 {
			continue
		}
		if f.bin > 0 && (r.EffectiveModulePx <= 0 || stats.QuantizeModuleSize(r.EffectiveModulePx, s.opts.BinStepPx) != f.bin) {
			continue
		}
		if (f.outcome == "failed" && r.Matched) || (f.outcome == "correct" && !r.Matched) {
			continue
		}
		views = append(views, sampleView{
			SampleID:   r.SampleID,
			Scale:      r.Scale,
			Matched:    r.Matched,
			Found:      r.Found,
			RawPayload: r.RawPayload,
			Expected:   r.Expected,
			ElapsedMs:  r.ElapsedMs,
			ModulePx:   r.EffectiveModulePx,
			ImageURL:   sampleImageURL(job.Dataset, r.SampleID),
		})
	}
	return views, nil
}

func (s *Server) jobSamplesHandler(c *gin.Context) {
	job, ok := s.jobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Status != JobDone {
		c.JSON(http.StatusConflict, gin.H{"error": "job is " + string(job.Status)})
		return
	}
	f, err := parseSampleFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	views, err := s.filterSamples(job, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, views)
}

type binRow struct {
	result.ModuleBin
	CorrectPct float64
	FailedPct  float64
}

// jobPageHandler renders a finished job's charts and its module size bins.
// Each bin's correct and failed counts link back to this page with a
// drilldown listing the matching samples.
func (s *Server) jobPageHandler(c *gin.Context) {
	job, ok := s.jobs.get(c.Param("id"))
	if !ok {
		c.String(http.StatusNotFound, "job not found")
		return
	}
	data := gin.H{"Job": job, "Done": job.Status == JobDone}
	if job.Status != JobDone {
		c.HTML(http.StatusOK, "job.html", data)
		return
	}
	f, err := parseSampleFilter(c)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	bins, err := result.ReadModuleBins(result.DecoderDir(job.RunDir, job.Decoder))
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	largest := 0
	for _, b := range bins {
		largest = max(largest, b.Count)
	}
	rows := make([]binRow, len(bins))
	for i, b := range bins {
		rows[i] = binRow{ModuleBin: b}
		if largest > 0 {
			rows[i].CorrectPct = 100 * float64(b.CountMatched) / float64(largest)
			rows[i].FailedPct = 100 * float64(b.CountFailed) / float64(largest)
		}
	}
	data["Stats"] = job.Stats
	data["Bins"] = rows
	data["Artifacts"] = s.artifactURLs(job)

	if f.bin > 0 {
		samples, err := s.filterSamples(job, f)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		data["Filter"] = gin.H{"Bin": f.bin, "Outcome": f.outcome}
		data["Samples"] = samples
	}
	c.HTML(http.StatusOK, "job.html", data)
}

func (s *Server) decodeHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"image\" is required"})
		return
	}
	name := c.PostForm("decoder")
	if name == "" {
		name = s.opts.Decoders[0]
	}
	factor := 1.0
	if v := c.PostForm("scale"); v != "" {
		if factor, err = strconv.ParseFloat(v, 64); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scale must be a number"})
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image: " + err.Error()})
		return
	}
	scaled, err := scale.Image(img, factor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := s.opts.Factory(name)
	if err != nil {
		var missing *decoder.DependencyMissingError
		if errors.As(err, &missing) {
			c.JSON(http.StatusFailedDependency, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer decoder.Close(d)

	out, elapsed := decoder.Measure(d, scaled)
	resp := gin.H{
		"decoder":    name,
		"found":      out.Found,
		"payload":    out.Payload,
		"elapsed_ms": float64(elapsed.Nanoseconds()) / 1e6,
		"scale":      factor,
		"width":      scaled.Bounds().Dx(),
		"height":     scaled.Bounds().Dy(),
	}
	if expected, ok := c.GetPostForm("expected"); ok && expected != "" {
		resp["matched"] = evaluate.Matches(out, expected)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) absOutputs() string {
	abs, err := filepath.Abs(s.opts.OutputsDir)
	if err != nil {
		return s.opts.OutputsDir
	}
	return abs
}

func (s *Server) outputsHandler(c *gin.Context) {
	root := s.absOutputs()
	rel := filepath.FromSlash(strings.TrimPrefix(c.Param("path"), "/"))
	target := filepath.Join(root, rel)
	if r, err := filepath.Rel(root, target); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(target)
}

func sampleImageURL(datasetName, sampleID string) string {
	return "/api/datasets/" + url.PathEscape(datasetName) + "/image?path=" + url.QueryEscape(sampleID)
}
