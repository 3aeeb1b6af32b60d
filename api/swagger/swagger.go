package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LORDS Progress Report API",
        "description": "Spreadsheet ingestion, ledger editing and progress report generation",
        "version": "2.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {
            "name": "Upload",
            "description": "Subject and student-info spreadsheets"
        },
        {
            "name": "Preview",
            "description": "Ledger inspection and edits"
        },
        {
            "name": "Reports",
            "description": "Report generation and downloads"
        },
        {
            "name": "Health",
            "description": "Probes and metrics"
        }
    ],
    "paths": {
        "/": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Service identity",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/health": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Liveness probe",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Readiness probe over the configured backends",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "Degraded"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                },
                "produces": [
                    "text/plain"
                ]
            }
        },
        "/api/health": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Per-module availability",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/metrics/summary": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Aggregated request and report counters",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/upload/subjects": {
            "post": {
                "tags": [
                    "Upload"
                ],
                "summary": "Upload subject spreadsheets",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/SubjectUploadResponse"
                        }
                    },
                    "400": {
                        "description": "No file could be processed",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "files[]",
                        "in": "formData",
                        "type": "file",
                        "required": true,
                        "description": "Subject spreadsheets (.xlsx, .xls)"
                    }
                ],
                "consumes": [
                    "multipart/form-data"
                ]
            }
        },
        "/api/upload/student-info": {
            "post": {
                "tags": [
                    "Upload"
                ],
                "summary": "Upload the student info and backlog spreadsheet",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/StudentInfoUploadResponse"
                        }
                    },
                    "400": {
                        "description": "Unreadable file",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "file",
                        "in": "formData",
                        "type": "file",
                        "required": true
                    }
                ],
                "consumes": [
                    "multipart/form-data"
                ]
            }
        },
        "/api/upload/status": {
            "get": {
                "tags": [
                    "Upload"
                ],
                "summary": "Upload status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/UploadStatusResponse"
                        }
                    }
                }
            }
        },
        "/api/upload/clear": {
            "delete": {
                "tags": [
                    "Upload"
                ],
                "summary": "Clear every upload and the student ledger",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/MessageResponse"
                        }
                    }
                }
            }
        },
        "/api/preview/subjects": {
            "get": {
                "tags": [
                    "Preview"
                ],
                "summary": "Preview every uploaded subject table",
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "No subject data uploaded",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                }
            }
        },
        "/api/preview/student/{roll_no}": {
            "get": {
                "tags": [
                    "Preview"
                ],
                "summary": "Get one student record",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/StudentRecord"
                        }
                    },
                    "404": {
                        "description": "Unknown roll number",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "roll_no",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            },
            "put": {
                "tags": [
                    "Preview"
                ],
                "summary": "Edit a student's names, marks or attendance",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/StudentRecord"
                        }
                    },
                    "400": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    },
                    "404": {
                        "description": "Unknown roll number",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    },
                    "422": {
                        "description": "Attendance present exceeds conducted",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "roll_no",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateStudentRequest"
                        }
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Preview"
                ],
                "summary": "Remove a student from the ledger",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/MessageResponse"
                        }
                    },
                    "404": {
                        "description": "Unknown roll number",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "roll_no",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/preview/backlog": {
            "get": {
                "tags": [
                    "Preview"
                ],
                "summary": "Preview the backlog table",
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "No backlog data uploaded",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                }
            }
        },
        "/api/preview/backlog/{roll_no}": {
            "put": {
                "tags": [
                    "Preview"
                ],
                "summary": "Edit a student's backlog entries",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/MessageResponse"
                        }
                    },
                    "400": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "roll_no",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "student_name": {
                                    "type": "string"
                                },
                                "father_name": {
                                    "type": "string"
                                },
                                "backlogs": {
                                    "type": "object",
                                    "additionalProperties": {
                                        "type": "string"
                                    }
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/api/preview/export.csv": {
            "get": {
                "tags": [
                    "Preview"
                ],
                "summary": "Export the ledger as CSV",
                "responses": {
                    "200": {
                        "description": "CSV file"
                    },
                    "404": {
                        "description": "No subject data uploaded",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "produces": [
                    "text/csv"
                ]
            }
        },
        "/api/reports/generate": {
            "post": {
                "tags": [
                    "Reports"
                ],
                "summary": "Generate progress reports",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/GenerateReportResponse"
                        }
                    },
                    "400": {
                        "description": "No subject data uploaded",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    },
                    "422": {
                        "description": "No report could be generated",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/GenerateReportRequest"
                        }
                    }
                ]
            }
        },
        "/api/reports/download/{filename}": {
            "get": {
                "tags": [
                    "Reports"
                ],
                "summary": "Download a generated report",
                "responses": {
                    "200": {
                        "description": "PDF file"
                    },
                    "404": {
                        "description": "Report not found",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "filename",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "produces": [
                    "application/pdf"
                ]
            }
        },
        "/api/reports/download-zip": {
            "get": {
                "tags": [
                    "Reports"
                ],
                "summary": "Download every generated report as a ZIP",
                "responses": {
                    "200": {
                        "description": "ZIP archive"
                    },
                    "404": {
                        "description": "No reports generated",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "produces": [
                    "application/zip"
                ]
            }
        },
        "/api/reports/list": {
            "get": {
                "tags": [
                    "Reports"
                ],
                "summary": "List generated reports",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ReportListResponse"
                        }
                    }
                }
            }
        },
        "/api/reports/preview-html/{roll_no}": {
            "get": {
                "tags": [
                    "Reports"
                ],
                "summary": "Preview a student's latest report as HTML",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ReportPreviewResponse"
                        }
                    },
                    "400": {
                        "description": "No subject data uploaded",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    },
                    "404": {
                        "description": "No report generated",
                        "schema": {
                            "$ref": "#/definitions/ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "roll_no",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/reports/clear": {
            "delete": {
                "tags": [
                    "Reports"
                ],
                "summary": "Delete every generated report",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/MessageResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "Issue": {
            "type": "object",
            "properties": {
                "kind": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "filename": {
                    "type": "string"
                },
                "subject": {
                    "type": "string"
                },
                "column": {
                    "type": "string"
                },
                "roll_no": {
                    "type": "string"
                },
                "line": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "issues": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Issue"
                    }
                }
            }
        },
        "ErrorBody": {
            "type": "object",
            "properties": {
                "detail": {
                    "type": "string"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                }
            }
        },
        "MessageResponse": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "SubjectUploadResponse": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "message": {
                    "type": "string"
                },
                "subjects": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "total_students": {
                    "type": "integer"
                },
                "all_students": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "uploaded": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "warnings": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Issue"
                    }
                },
                "rejected": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Issue"
                    }
                },
                "failed_files": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "filename": {
                                "type": "string"
                            },
                            "code": {
                                "type": "string"
                            },
                            "message": {
                                "type": "string"
                            },
                            "issues": {
                                "type": "array",
                                "items": {
                                    "$ref": "#/definitions/Issue"
                                }
                            }
                        }
                    }
                }
            }
        },
        "StudentInfoUploadResponse": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "message": {
                    "type": "string"
                },
                "student_count": {
                    "type": "integer"
                },
                "placeholders_created": {
                    "type": "integer"
                },
                "columns": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "semester_columns": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "warnings": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Issue"
                    }
                },
                "rejected": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Issue"
                    }
                }
            }
        },
        "UploadStatusResponse": {
            "type": "object",
            "properties": {
                "has_subjects": {
                    "type": "boolean"
                },
                "has_backlog": {
                    "type": "boolean"
                },
                "subjects": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "total_students": {
                    "type": "integer"
                },
                "ready_to_generate": {
                    "type": "boolean"
                }
            }
        },
        "SubjectMarks": {
            "type": "object",
            "properties": {
                "subject_name": {
                    "type": "string"
                },
                "dt_marks": {
                    "type": "number"
                },
                "st_marks": {
                    "type": "number"
                },
                "at_marks": {
                    "type": "number"
                },
                "total_marks": {
                    "type": "number"
                },
                "attendance_conducted": {
                    "type": "integer"
                },
                "attendance_present": {
                    "type": "integer"
                },
                "is_lab": {
                    "type": "boolean"
                },
                "absent": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "StudentRecord": {
            "type": "object",
            "properties": {
                "roll_no": {
                    "type": "string"
                },
                "student_name": {
                    "type": "string"
                },
                "father_name": {
                    "type": "string"
                },
                "subjects": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/SubjectMarks"
                    }
                },
                "backlog": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "array",
                        "items": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "UpdateStudentRequest": {
            "type": "object",
            "properties": {
                "student_name": {
                    "type": "string"
                },
                "father_name": {
                    "type": "string"
                },
                "subjects": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "required": [
                            "subject_name"
                        ],
                        "properties": {
                            "subject_name": {
                                "type": "string"
                            },
                            "dt_marks": {
                                "type": "number"
                            },
                            "st_marks": {
                                "type": "number"
                            },
                            "at_marks": {
                                "type": "number"
                            },
                            "attendance_conducted": {
                                "type": "integer"
                            },
                            "attendance_present": {
                                "type": "integer"
                            }
                        }
                    }
                }
            }
        },
        "GenerateReportRequest": {
            "type": "object",
            "properties": {
                "students": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "department_name": {
                    "type": "string"
                },
                "report_date": {
                    "type": "string"
                },
                "academic_year": {
                    "type": "string"
                },
                "semester": {
                    "type": "string"
                },
                "attendance_start": {
                    "type": "string"
                },
                "attendance_end": {
                    "type": "string"
                },
                "template": {
                    "type": "string",
                    "enum": [
                        "Detailed",
                        "Compact"
                    ]
                },
                "include_backlog": {
                    "type": "boolean"
                },
                "include_notes": {
                    "type": "boolean"
                }
            }
        },
        "GenerateReportResponse": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "message": {
                    "type": "string"
                },
                "job_id": {
                    "type": "string"
                },
                "reports": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "object",
                        "properties": {
                            "filename": {
                                "type": "string"
                            },
                            "student_name": {
                                "type": "string"
                            }
                        }
                    }
                },
                "consolidated_filename": {
                    "type": "string"
                },
                "total_generated": {
                    "type": "integer"
                },
                "failed": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "roll_no": {
                                "type": "string"
                            },
                            "code": {
                                "type": "string"
                            },
                            "reason": {
                                "type": "string"
                            }
                        }
                    }
                },
                "partial_error": {
                    "type": "object",
                    "properties": {
                        "code": {
                            "type": "string"
                        },
                        "message": {
                            "type": "string"
                        },
                        "issues": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/Issue"
                            }
                        }
                    }
                }
            }
        },
        "ReportListResponse": {
            "type": "object",
            "properties": {
                "reports": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "count": {
                    "type": "integer"
                }
            }
        },
        "ReportPreviewResponse": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "html": {
                    "type": "string"
                },
                "filename": {
                    "type": "string"
                },
                "warnings": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
