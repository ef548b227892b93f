package services

import "github.com/prometheus/client_golang/prometheus"

var (
	fetchedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cwatch_candidates_fetched_total",
		Help: "Parsed candidate records returned by a source before the date window filter.",
	}, []string{"source"})

	filteredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cwatch_candidates_filtered_total",
		Help: "Candidate records dropped because their effective date is outside the window.",
	}, []string{"source"})

	ingestedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cwatch_documents_ingested_total",
		Help: "Documents upserted into a snapshot.",
	}, []string{"source"})

	mentionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cwatch_competitor_matches_total",
		Help: "Alias matches evaluated by the tagger (not new rows).",
	}, []string{"source"})

	failedRunsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cwatch_runs_failed_total",
		Help: "Ingest runs that ended with an error.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(fetchedCounter, filteredCounter, ingestedCounter, mentionsCounter, failedRunsCounter)
}

func observeRun(r *RunReport) {
	src := string(r.Source)
	fetchedCounter.WithLabelValues(src).Add(float64(r.Fetched))
	filteredCounter.WithLabelValues(src).Add(float64(r.FilteredOut))
	ingestedCounter.WithLabelValues(src).Add(float64(r.Ingested))
	mentionsCounter.WithLabelValues(src).Add(float64(r.Mentions))
}
