// Package metrics содержит счётчики Prometheus для конвейера задач
// и обработчика платежей.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TasksProcessed считает завершённые прогоны конвейера по результату
// (completed или failed).
var TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "solver_tasks_processed_total",
	Help: "Number of finished pipeline runs by result.",
}, []string{"result"})

// PipelineRetries считает повторные попытки обработки задач.
var PipelineRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "solver_pipeline_retries_total",
	Help: "Number of pipeline attempt retries.",
})

// PaymentEvents считает применённые события оплаты по исходу.
var PaymentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "solver_payment_events_total",
	Help: "Number of processed payment webhook events by outcome.",
}, []string{"outcome"})

// NotificationsSent считает попытки отправки уведомлений по результату.
var NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "solver_notifications_total",
	Help: "Number of notification deliveries by result.",
}, []string{"result"})
