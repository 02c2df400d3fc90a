package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// TaskMessage — сообщение конвейеру: идентификатор задачи для обработки.
type TaskMessage struct {
	TaskID string `json:"task_id"`
}

// PublishMessage публикует сообщение в RabbitMQ с персистентной доставкой.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Dispatcher публикует задачи в очередь конвейера.
type Dispatcher struct {
	ch *amqp.Channel
}

// NewDispatcher создает новый Dispatcher поверх открытого канала.
func NewDispatcher(ch *amqp.Channel) *Dispatcher {
	return &Dispatcher{ch: ch}
}

// Enqueue ставит задачу в очередь на обработку. Ограничение "не больше
// одного исполнителя на задачу" обеспечивает сам воркер: он проверяет
// статус задачи перед запуском и завершается без побочных эффектов,
// если задача уже обработана.
func (d *Dispatcher) Enqueue(taskID string) error {
	return PublishMessage(d.ch, TasksExchange, TasksRoutingKey, TaskMessage{TaskID: taskID})
}
