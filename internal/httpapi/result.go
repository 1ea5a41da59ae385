package httpapi

import (
	"encoding/json"
	"net/http"
)

// successResult 成功信封：message + data（data 永远出现，空结果是空数组）
type successResult[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// failResult 失败信封：message + error 诊断文本
type failResult struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// WriteOK 写出 200 成功信封
func WriteOK[T any](w http.ResponseWriter, message string, data T) {
	writeJSON(w, http.StatusOK, successResult[T]{Message: message, Data: data})
}

// WriteFail 写出 500 失败信封
func WriteFail(w http.ResponseWriter, message string, err error) {
	writeJSON(w, http.StatusInternalServerError, failResult{Message: message, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
