package rabbitmq

// TasksExchange — exchange для сообщений о задачах.
const TasksExchange = "tasks"

// Имена очереди и ключа маршрутизации конвейера обработки задач.
const (
	TasksQueue      = "tasks.process"
	TasksRoutingKey = "process"
)

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetTaskQueues возвращает очереди, необходимые конвейеру обработки задач.
func GetTaskQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: TasksQueue, RoutingKey: TasksRoutingKey},
	}
}
