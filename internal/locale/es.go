package locale

// spanish holds the Spanish templates.
var spanish = map[Key]string{
	MicrophoneError:     "No pude acceder a tu micrófono. Revisa el dispositivo y sus permisos.",
	OutputError:         "No pude abrir la salida de audio. Revisa tus altavoces.",
	ConnectionError:     "No pude conectar con el servicio del asistente. Inténtalo de nuevo.",
	TransportError:      "Se perdió la conexión con el asistente.",
	SystemAck:           "Iba a {action} tu ordenador, pero por seguridad no puedo controlar el sistema directamente.",
	ApplicationAck:      "Iba a {action} {app}, pero por seguridad no puedo controlar aplicaciones directamente.",
	MediaAck:            "Iba a {action}, pero por seguridad no puedo controlar la reproducción directamente.",
	MediaAckTarget:      "Iba a {action} en {target}, pero por seguridad no puedo controlar la reproducción directamente.",
	ReminderSet:         "Recordatorio programado: \"{text}\" a las {time}.",
	ReminderSetTomorrow: "Recordatorio programado: \"{text}\" mañana a las {time}.",
	ReminderSetIn:       "Recordatorio programado: \"{text}\" en {minutes} minutos.",
	ReminderSetInMinute: "Recordatorio programado: \"{text}\" en 1 minuto.",
	ReminderTimeInvalid: "Lo siento, no entendí la hora de ese recordatorio.",
	ReminderDue:         "Recordatorio: {text}",
	Searching:           "Buscando en la web \"{query}\"...",
	SearchFailed:        "Lo siento, la búsqueda web falló. Inténtalo de nuevo.",
	ToolFailed:          "Lo siento, no pude completar esa petición.",
	TimeFormat:          "15:04",

	ActionShutdown:   "apagar",
	ActionRestart:    "reiniciar",
	ActionOpen:       "abrir",
	ActionClose:      "cerrar",
	ActionPlay:       "reanudar la reproducción",
	ActionPause:      "pausar la reproducción",
	ActionVolumeUp:   "subir el volumen",
	ActionVolumeDown: "bajar el volumen",
}
