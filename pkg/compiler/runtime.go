package compiler

// The generated C program carries its own support library, emitted inline
// ahead of user code. The library is split into segments so that a program
// only pays for what it uses: the dynamic-array and string segments are
// always present, the rest are gated on usage flags collected during the
// first generation pass.

const runtimeHeader = `#define _GNU_SOURCE
#include <stdio.h>
#include <stdlib.h>
#include <stdint.h>
#include <stdbool.h>
#include <string.h>
#include <ctype.h>
`

const runtimeUnknown = `
// Unknown type structure
typedef struct {
    char* reason;
    char** options;
    int32_t option_count;
} Unknown;

Unknown* create_unknown(const char* reason) {
    Unknown* u = malloc(sizeof(Unknown));
    u->reason = strdup(reason);
    u->options = NULL;
    u->option_count = 0;
    return u;
}
`

const runtimeDynArray = `
// Dynamic array structure
typedef struct {
    void* data;
    int32_t length;
    int32_t capacity;
    size_t element_size;
} DynamicArray;

DynamicArray* array_new(size_t element_size) {
    DynamicArray* arr = malloc(sizeof(DynamicArray));
    arr->capacity = 4;
    arr->length = 0;
    arr->element_size = element_size;
    arr->data = malloc(arr->capacity * element_size);
    return arr;
}

void array_push_i32(DynamicArray* arr, int32_t item) {
    if (arr->length >= arr->capacity) {
        arr->capacity *= 2;
        arr->data = realloc(arr->data, arr->capacity * arr->element_size);
    }
    ((int32_t*)arr->data)[arr->length++] = item;
}

int32_t array_pop_i32(DynamicArray* arr) {
    if (arr->length == 0) return 0;
    return ((int32_t*)arr->data)[--arr->length];
}

void array_push_string(DynamicArray* arr, char* item) {
    if (arr->length >= arr->capacity) {
        arr->capacity *= 2;
        arr->data = realloc(arr->data, arr->capacity * arr->element_size);
    }
    ((char**)arr->data)[arr->length++] = item;
}

DynamicArray* str_split(const char* str, const char* delim) {
    DynamicArray* result = array_new(sizeof(char*));
    char* str_copy = strdup(str);
    char* token = strtok(str_copy, delim);
    while (token != NULL) {
        array_push_string(result, strdup(token));
        token = strtok(NULL, delim);
    }
    free(str_copy);
    return result;
}

char* array_join_string(DynamicArray* arr, const char* sep) {
    if (arr->length == 0) return strdup("");
    int total_len = 0;
    for (int i = 0; i < arr->length; i++) {
        total_len += strlen(((char**)arr->data)[i]);
    }
    total_len += strlen(sep) * (arr->length - 1);
    char* result = malloc(total_len + 1);
    result[0] = '\0';
    for (int i = 0; i < arr->length; i++) {
        if (i > 0) strcat(result, sep);
        strcat(result, ((char**)arr->data)[i]);
    }
    return result;
}
`

const runtimeHOF = `
void array_reverse_i32(DynamicArray* arr) {
    int32_t* data = (int32_t*)arr->data;
    for (int i = 0; i < arr->length / 2; i++) {
        int32_t temp = data[i];
        data[i] = data[arr->length - 1 - i];
        data[arr->length - 1 - i] = temp;
    }
}

DynamicArray* array_map_i32(DynamicArray* arr, int32_t(*func)(int32_t, int32_t)) {
    DynamicArray* result = array_new(sizeof(int32_t));
    for (int i = 0; i < arr->length; i++) {
        int32_t val = ((int32_t*)arr->data)[i];
        int32_t mapped = func(val, 0);
        array_push_i32(result, mapped);
    }
    return result;
}

DynamicArray* array_filter_i32(DynamicArray* arr, int32_t(*func)(int32_t, int32_t)) {
    DynamicArray* result = array_new(sizeof(int32_t));
    for (int i = 0; i < arr->length; i++) {
        int32_t val = ((int32_t*)arr->data)[i];
        if (func(val, 0)) {
            array_push_i32(result, val);
        }
    }
    return result;
}

int32_t array_reduce_i32(DynamicArray* arr, int32_t(*func)(int32_t, int32_t), int32_t initial) {
    int32_t result = initial;
    for (int i = 0; i < arr->length; i++) {
        int32_t val = ((int32_t*)arr->data)[i];
        result = func(result, val);
    }
    return result;
}

void array_forEach_i32(DynamicArray* arr, int32_t(*func)(int32_t, int32_t)) {
    for (int i = 0; i < arr->length; i++) {
        int32_t val = ((int32_t*)arr->data)[i];
        func(val, 0);
    }
}
`

const runtimeString = `
// String helper functions
char* str_to_upper(const char* str) {
    int len = strlen(str);
    char* result = malloc(len + 1);
    for (int i = 0; i < len; i++) { result[i] = toupper(str[i]); }
    result[len] = '\0';
    return result;
}

char* str_to_lower(const char* str) {
    int len = strlen(str);
    char* result = malloc(len + 1);
    for (int i = 0; i < len; i++) { result[i] = tolower(str[i]); }
    result[len] = '\0';
    return result;
}

char* str_trim(const char* str) {
    while (*str && isspace(*str)) str++;
    if (*str == '\0') return strdup("");
    const char* end = str + strlen(str) - 1;
    while (end > str && isspace(*end)) end--;
    int len = end - str + 1;
    char* result = malloc(len + 1);
    strncpy(result, str, len);
    result[len] = '\0';
    return result;
}

char* str_char_at(const char* str, int32_t index) {
    if (index < 0 || index >= strlen(str)) return strdup("");
    char* result = malloc(2);
    result[0] = str[index];
    result[1] = '\0';
    return result;
}

char* str_substring(const char* str, int32_t start, int32_t end) {
    int len = strlen(str);
    if (start < 0) start = 0;
    if (end > len) end = len;
    if (start >= end) return strdup("");
    int sublen = end - start;
    char* result = malloc(sublen + 1);
    strncpy(result, str + start, sublen);
    result[sublen] = '\0';
    return result;
}

char* str_concat(const char* s1, const char* s2) {
    int len = strlen(s1) + strlen(s2);
    char* result = malloc(len + 1);
    strcpy(result, s1);
    strcat(result, s2);
    return result;
}

char* str_replace(const char* str, const char* from, const char* to) {
    char* pos = strstr(str, from);
    if (!pos) return strdup(str);
    int from_len = strlen(from);
    int to_len = strlen(to);
    int prefix_len = pos - str;
    int suffix_len = strlen(pos + from_len);
    char* result = malloc(prefix_len + to_len + suffix_len + 1);
    strncpy(result, str, prefix_len);
    strcpy(result + prefix_len, to);
    strcpy(result + prefix_len + to_len, pos + from_len);
    return result;
}
`

const runtimeMath = `
// Math helper functions
int32_t min_i32(int32_t a, int32_t b) { return a < b ? a : b; }
int32_t max_i32(int32_t a, int32_t b) { return a > b ? a : b; }
int32_t abs_i32(int32_t a) { return a < 0 ? -a : a; }
`

const runtimeStrFrom = `
// Value-to-string conversions for interpolated strings
char* str_from_i32(int32_t v) {
    char* buf = malloc(16);
    snprintf(buf, 16, "%d", v);
    return buf;
}

char* str_from_f64(double v) {
    char* buf = malloc(32);
    snprintf(buf, 32, "%g", v);
    return buf;
}
`
